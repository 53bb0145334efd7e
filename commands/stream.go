package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/activecm/flowguard/pkg/stream"
	"github.com/activecm/flowguard/resources"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "stream",
		Usage: "Classify flow records published on NATS",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{
				Name:  "url, u",
				Usage: "Connect to the NATS server at `URL` instead of the configured Stream.URL",
			},
		},
		Action: runStream,
	}

	bootstrapCommands(command)
}

func runStream(c *cli.Context) error {
	res := resources.InitResources(c.String("config"))
	defer res.Close()

	conf := res.Config.S.Stream
	if c.String("url") != "" {
		conf.URL = c.String("url")
	}

	sub, err := stream.NewSubscriber(conf, res.Service, res.Log)
	if err != nil {
		res.Log.Error(err)
		return cli.NewExitError(err.Error(), -1)
	}
	defer sub.Close()

	if err := sub.Start(); err != nil {
		res.Log.Error(err)
		return cli.NewExitError(err.Error(), -1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	res.Log.Info("Stopping the stream classifier")
	return nil
}
