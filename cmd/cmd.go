package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/relaychat/relayd/config"
)

const ServiceName = "relayd"

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Chat relay server: presence, routing and offline delivery",
		Commands: []*cli.Command{
			serverCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			// Stop tears the listeners down and resets persisted presence:
			// after this process exits nobody holds a live connection.
			slog.Info("shutting down")
			return app.Stop(context.Background())
		},
	}
}
