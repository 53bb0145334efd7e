package commands

import (
	"fmt"
	"os"

	"github.com/activecm/flowguard/config"
	"github.com/activecm/flowguard/resources"

	"github.com/urfave/cli"
	yaml "gopkg.in/yaml.v2"
)

func init() {
	command := cli.Command{
		Flags: []cli.Flag{
			configFlag,
		},
		Name:   "test-config",
		Usage:  "Check the configuration file and model artifacts for validity",
		Action: testConfiguration,
	}

	bootstrapCommands(command)
}

// testConfiguration prints out the result of parsing the config file
func testConfiguration(c *cli.Context) error {
	// First, print out the config as it was parsed
	conf, err := config.LoadConfig(c.String("config"))
	if err != nil {
		fmt.Fprintf(os.Stdout, "Failed to config: %s\n", err.Error())
		os.Exit(-1)
	}

	staticConfig, err := yaml.Marshal(conf.S)
	if err != nil {
		return err
	}

	tableConfig, err := yaml.Marshal(conf.T)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\n%s\n", string(staticConfig))
	fmt.Fprintf(os.Stdout, "\n%s\n", string(tableConfig))

	// Then load the artifacts and, if enabled, connect the log database
	res, err := resources.NewResources(conf, conf.S.Log.LogToDB)
	if err != nil {
		return cli.NewExitError("Failed to initialize: "+err.Error(), -1)
	}
	defer res.Close()

	health := res.Service.HealthCheck()
	fmt.Fprintf(os.Stdout, "Model loaded: %v, %d columns, %d labels\n",
		health.ModelLoaded, len(res.Service.Columns()), res.Service.Labels().Len())
	return nil
}
