package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/activecm/flowguard/resources"
	"github.com/globalsign/mgo"
	"github.com/urfave/cli"
)

func init() {
	reset := cli.Command{
		Name:      "delete-database",
		Usage:     "Delete a prediction database",
		ArgsUsage: "<database>",
		Flags: []cli.Flag{
			configFlag,
			cli.BoolFlag{
				Name:  "force, f",
				Usage: "Bypass verification prompt",
			},
		},
		Action: func(c *cli.Context) error {
			db := c.Args().Get(0)
			if db == "" {
				return cli.NewExitError("Specify a database", -1)
			}

			if !c.Bool("force") {
				fmt.Print("Are you sure you want to delete database ", db, " [y/N] ")

				read := bufio.NewReader(os.Stdin)
				response, err := read.ReadString('\n')
				if err != nil {
					return cli.NewExitError("Error: could not read the response: "+err.Error(), -1)
				}
				if !confirmed(response) {
					return cli.NewExitError("Database "+db+" was not deleted.", 0)
				}
			}

			res := resources.InitDBResources(c.String("config"))
			defer res.Close()
			return deleteDatabase(res, db)
		},
	}

	bootstrapCommands(reset)
}

// confirmed reports whether a prompt response accepts the action
func confirmed(response string) bool {
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func deleteDatabase(res *resources.Resources, db string) error {
	fmt.Println("Deleting database:", db)
	if _, err := res.MetaDB.GetDBMetaInfo(db); err != nil {
		if err == mgo.ErrNotFound {
			return cli.NewExitError("Error: database "+db+" does not exist", -1)
		}
		return cli.NewExitError("Error: could not delete database: "+err.Error(), -1)
	}
	if err := res.MetaDB.DeleteDB(db); err != nil {
		return cli.NewExitError("Error: could not delete database: "+err.Error(), -1)
	}
	return nil
}
