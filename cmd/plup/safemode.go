package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/log"
)

var safeModeCmd = &cli.Command{
	Name:  "safe-mode",
	Usage: "Control the safe mode of the plugin manager",
	Commands: []*cli.Command{
		{
			Name:   "status",
			Usage:  "Show whether safe mode is enabled",
			Action: safeModeStatusAction,
		},
		{
			Name:   "enable",
			Usage:  "Enable safe mode, disabling every user installed plugin",
			Action: safeModeEnableAction,
		},
		{
			Name:   "disable",
			Usage:  "Disable safe mode and restore the previous plugin states",
			Action: safeModeDisableAction,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "keep-state",
					Usage: "Keep the plugin states of the safe mode session instead of restoring",
				},
			},
		},
	},
}

func safeModeStatusAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	enabled, err := s.upm.SafeMode(ctx)
	if err != nil {
		return err
	}

	state := okStyle.Render("disabled")
	if enabled {
		state = warnStyle.Render("enabled")
	}
	fmt.Fprintf(stdout(cmd), "Safe mode is currently %s\n", state)
	return nil
}

func safeModeEnableAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	ok, err := s.upm.SetSafeMode(ctx, true, false)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("could not enable safe mode: is it already enabled?")
	}
	log.Info("Safe mode is now enabled")
	return nil
}

func safeModeDisableAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	keep := cmd.Bool("keep-state")
	ok, err := s.upm.SetSafeMode(ctx, false, keep)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("could not disable safe mode: is it already disabled?")
	}
	if keep {
		log.Info("Safe mode is now disabled, all plugins stayed disabled")
	} else {
		log.Info("Safe mode is now disabled, all plugins got restored")
	}
	return nil
}
