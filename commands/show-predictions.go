package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/activecm/flowguard/pkg/prediction"
	"github.com/activecm/flowguard/resources"
	"github.com/globalsign/mgo"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:      "show-predictions",
		Usage:     "Print the malicious predictions stored in a database",
		ArgsUsage: "<database>",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			delimFlag,
			limitFlag,
			noLimitFlag,
			cli.BoolFlag{
				Name:  "summary, s",
				Usage: "Print the number of flows per label instead",
			},
		},
		Action: showPredictions,
	}

	bootstrapCommands(command)
}

func showPredictions(c *cli.Context) error {
	db := c.Args().Get(0)
	if db == "" {
		return cli.NewExitError("Specify a database", -1)
	}
	res := resources.InitDBResources(c.String("config"))
	defer res.Close()

	if _, err := res.MetaDB.GetDBMetaInfo(db); err != nil {
		if err == mgo.ErrNotFound {
			return cli.NewExitError("No predictions were stored in "+db, -1)
		}
		return cli.NewExitError(err.Error(), -1)
	}
	res.DB.SelectDB(db)

	if c.Bool("summary") {
		counts, err := prediction.Summary(res)
		if err != nil {
			res.Log.Error(err)
			return cli.NewExitError(err.Error(), -1)
		}
		if c.Bool("human-readable") {
			return showLabelCountsHuman(counts)
		}
		return showLabelCounts(counts, c.String("delimiter"))
	}

	results, err := prediction.MaliciousResults(res, c.Int("limit"), c.Bool("no-limit"))
	if err != nil {
		res.Log.Error(err)
		return cli.NewExitError(err.Error(), -1)
	}

	if len(results) == 0 {
		return cli.NewExitError("No malicious flows were found", -1)
	}

	if c.Bool("human-readable") {
		return showPredictionsHuman(results)
	}
	return showPredictionsDelim(results, c.String("delimiter"))
}

var predictionHeader = []string{"UID", "Source", "Destination", "Timestamp", "Label", "Confidence", "Model"}

func predictionRow(result prediction.Result) []string {
	return []string{
		result.UID, result.Source, result.Destination, f(result.TimeStamp),
		result.Label, p(result.Confidence), result.Model,
	}
}

func showPredictionsHuman(results []prediction.Result) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(predictionHeader)
	for _, result := range results {
		table.Append(predictionRow(result))
	}
	table.Render()
	return nil
}

func showPredictionsDelim(results []prediction.Result, delim string) error {
	fmt.Println(strings.Join(predictionHeader, delim))
	for _, result := range results {
		fmt.Println(strings.Join(predictionRow(result), delim))
	}
	return nil
}

var labelCountHeader = []string{"Label", "Flows", "Malicious", "Avg Confidence"}

func labelCountRow(count prediction.LabelCount) []string {
	return []string{count.Label, i(count.Count), fmt.Sprint(count.Malicious), p(count.AvgConfidence)}
}

func showLabelCountsHuman(counts []prediction.LabelCount) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(labelCountHeader)
	for _, count := range counts {
		table.Append(labelCountRow(count))
	}
	table.Render()
	return nil
}

func showLabelCounts(counts []prediction.LabelCount, delim string) error {
	fmt.Println(strings.Join(labelCountHeader, delim))
	for _, count := range counts {
		fmt.Println(strings.Join(labelCountRow(count), delim))
	}
	return nil
}
