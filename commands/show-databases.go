package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/activecm/flowguard/database"
	"github.com/activecm/flowguard/resources"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func init() {
	databases := cli.Command{
		Name:  "show-databases",
		Usage: "Print the prediction databases currently stored",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			delimFlag,
		},
		Action: func(c *cli.Context) error {
			res := resources.InitDBResources(c.String("config"))
			defer res.Close()

			dbs, err := res.MetaDB.GetDatabases()
			if err != nil {
				return cli.NewExitError("Failed to list databases: "+err.Error(), -1)
			}

			if c.Bool("human-readable") {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader(databaseHeader)
				for _, db := range dbs {
					table.Append(databaseRow(db))
				}
				table.Render()
				return nil
			}

			delim := c.String("delimiter")
			fmt.Println(strings.Join(databaseHeader, delim))
			for _, db := range dbs {
				fmt.Println(strings.Join(databaseRow(db), delim))
			}
			return nil
		},
	}

	bootstrapCommands(databases)
}

var databaseHeader = []string{"Database", "Classified", "Model", "Version"}

func databaseRow(db database.DBMetaInfo) []string {
	return []string{db.Name, fmt.Sprint(db.ClassifyFinished), db.Model, db.ClassifyVersion}
}
