package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/activecm/flowguard/commands"
	"github.com/activecm/flowguard/config"
	"github.com/urfave/cli"
)

// Entry point of flowguard
func main() {
	app := cli.NewApp()
	app.Name = "flowguard"
	app.Usage = "Classify network flows as benign or malicious."

	// the version is set by the build process
	app.Version = config.Version

	// Define commands used with this application
	app.Commands = commands.Commands()

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
