package commands

import (
	"runtime"

	"github.com/urfave/cli"
)

var (
	allCommands []cli.Command

	// below are some prebuilt flags that get used often in various commands

	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "Load configuration from `FILE`",
		Value: "",
	}

	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "Print a report instead of csv",
	}

	delimFlag = cli.StringFlag{
		Name:  "delimiter, d",
		Usage: "Set the delimiter to `DELIM` for csv output",
		Value: ",",
	}

	limitFlag = cli.IntFlag{
		Name:  "limit, li",
		Usage: "Limit the number of results to `LIMIT`",
		Value: 1000,
	}

	noLimitFlag = cli.BoolFlag{
		Name:  "no-limit, nl",
		Usage: "Print all results",
	}

	threadFlag = cli.IntFlag{
		Name:  "threads, t",
		Usage: "Use `N` worker threads, 0 uses the configured Batch.Threads or every CPU",
		Value: 0,
	}

	databaseFlag = cli.StringFlag{
		Name:  "database, db",
		Usage: "Store predictions in `DATABASE` instead of the configured Batch.Database",
		Value: "",
	}
)

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}

// bootstrapCommands simply adds a given command to the allCommands array
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// threads picks the number of workers from the flag, the config or the
// number of CPUs, in that order
func threads(flagValue, configured int) int {
	if flagValue > 0 {
		return flagValue
	}
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}
