package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/activecm/flowguard/resources"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "show-model",
		Usage: "Print the loaded classifier, its label table and feature columns",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			delimFlag,
		},
		Action: showModel,
	}

	bootstrapCommands(command)
}

func showModel(c *cli.Context) error {
	res := resources.InitResources(c.String("config"))
	defer res.Close()

	rows := modelRows(res)

	if c.Bool("human-readable") {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Property", "Value"})
		table.SetAutoWrapText(false)
		table.AppendBulk(rows)
		table.Render()
		return nil
	}

	delim := c.String("delimiter")
	fmt.Println(strings.Join([]string{"Property", "Value"}, delim))
	for _, row := range rows {
		fmt.Println(strings.Join(row, delim))
	}
	return nil
}

// modelRows describes the loaded artifacts. Lists are joined with spaces so
// they never clash with the csv delimiter.
func modelRows(res *resources.Resources) [][]string {
	classifier := res.Model.Classifier
	return [][]string{
		{"classifier", res.Config.S.Model.ClassifierPath},
		{"preprocessing", res.Config.S.Model.PreprocessingPath},
		{"objective", classifier.Objective()},
		{"trees", i(int64(classifier.NumTrees()))},
		{"classes", i(int64(classifier.NumClasses()))},
		{"convention", res.Model.Labels.Convention().String()},
		{"labels", strings.Join(res.Model.Labels.Labels(), " ")},
		{"malicious labels", strings.Join(res.Service.MaliciousLabels(), " ")},
		{"numeric features", strings.Join(res.Model.Features.NumericColumns(), " ")},
		{"categorical features", strings.Join(res.Model.Features.CategoricalColumns(), " ")},
		{"columns", i(int64(len(res.Service.Columns())))},
	}
}
