package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/activecm/flowguard/resources"
	"github.com/activecm/flowguard/server"
	"github.com/urfave/cli"
)

func init() {
	command := cli.Command{
		Name:  "serve",
		Usage: "Serve the prediction API over HTTP",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{
				Name:  "listen, l",
				Usage: "Listen on `ADDRESS` instead of the configured Server.ListenAddress",
			},
		},
		Action: serve,
	}

	bootstrapCommands(command)
}

func serve(c *cli.Context) error {
	res := resources.InitResources(c.String("config"))
	defer res.Close()

	srv := server.New(res.Config, res.Service, res.Registry, res.Log)
	if c.String("listen") != "" {
		srv.Address = c.String("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		res.Log.WithError(err).Error("API server failed")
		return cli.NewExitError(err.Error(), -1)
	}
	return nil
}
