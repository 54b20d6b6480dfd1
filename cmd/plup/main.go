package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/config"
	"github.com/rubiojr/plup/internal/install"
	"github.com/rubiojr/plup/internal/jobs"
	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		reportError(err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "plup",
		Usage:   "Plugin uploader and manager for self-hosted and managed Atlassian product instances",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Base url of the instance, including the context path (default: http://localhost:8090)",
				Sources: cli.EnvVars("PLUP_BASEURL"),
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"U"},
				Usage:   "Username used to authenticate (default: admin)",
				Sources: cli.EnvVars("PLUP_USER"),
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"P"},
				Usage:   "Password used to authenticate (default: admin)",
				Sources: cli.EnvVars("PLUP_PASSWORD"),
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the port of the base url",
			},
			&cli.BoolFlag{
				Name:  "ask-for-password",
				Usage: "Prompt for the password",
			},
			&cli.BoolFlag{
				Name:  "cloud",
				Usage: "Target a managed (cloud) instance",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: table, json or yaml",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the config file",
				Value: config.DefaultPath(),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(slog.LevelDebug)
			}
			return ctx, nil
		},
		DefaultCommand: "install",
		Commands: []*cli.Command{
			installCmd,
			listCmd,
			infoCmd,
			enableCmd,
			disableCmd,
			uninstallCmd,
			safeModeCmd,
			jobCmd,
			licenseCmd,
			apiCmd,
			configCmd,
			versionCmd,
		},
	}
}

// errorMessage turns err into the line shown to the operator.
func errorMessage(err error) string {
	var (
		authErr   *remote.AuthenticationError
		malformed *remote.MalformedResponseError
		notFound  *remote.NotFoundError
		upload    *remote.UploadFailedError
		timeout   *install.PollTimeoutError
		ambiguous *jobs.AmbiguousJobError
	)
	switch {
	case remote.IsConnectivity(err):
		return "Could not connect to host - check your base-url"
	case errors.As(err, &authErr), errors.As(err, &malformed):
		return "An error occurred - check your credentials"
	case errors.As(err, &notFound):
		return fmt.Sprintf("Not found: %s", notFound.Resource)
	case errors.As(err, &upload):
		return "An error occurred while uploading the plugin"
	case errors.As(err, &timeout):
		return "The installation did not finish in time"
	case errors.As(err, &ambiguous):
		return "Several jobs match, narrow the selection with --group or --idx"
	case errors.Is(err, jobs.ErrJobNotFound):
		return "Job could not be found"
	case remote.IsCancelled(err):
		return "Interrupted"
	}
	return err.Error()
}

func reportError(err error) {
	msg := errorMessage(err)
	if msg == err.Error() {
		log.Error(msg)
		return
	}
	log.Error(msg, "error", err)
}
