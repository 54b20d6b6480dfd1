package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/log"
)

var listCmd = &cli.Command{
	Name:   "list",
	Usage:  "List the plugins of the instance",
	Action: listAction,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Show all plugins instead of only the user installed ones",
		},
		webFlag("Open the plugin manager in a browser afterwards"),
	},
}

var infoCmd = &cli.Command{
	Name:      "info",
	Usage:     "Show information about a plugin",
	ArgsUsage: "[plugin-key]",
	Action:    infoAction,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "show-modules",
			Usage: "List the modules of the plugin too",
		},
		webFlag("Open the plugin manager in a browser afterwards"),
	},
}

var enableCmd = &cli.Command{
	Name:      "enable",
	Usage:     "Enable a plugin",
	ArgsUsage: "[plugin-key]",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return setEnabledAction(ctx, cmd, true)
	},
	Flags: []cli.Flag{webFlag("Open the plugin manager in a browser afterwards")},
}

var disableCmd = &cli.Command{
	Name:      "disable",
	Usage:     "Disable a plugin",
	ArgsUsage: "[plugin-key]",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return setEnabledAction(ctx, cmd, false)
	},
	Flags: []cli.Flag{webFlag("Open the plugin manager in a browser afterwards")},
}

var uninstallCmd = &cli.Command{
	Name:      "uninstall",
	Usage:     "Uninstall a plugin",
	ArgsUsage: "[plugin-key]",
	Action:    uninstallAction,
	Flags:     []cli.Flag{webFlag("Open the plugin manager in a browser afterwards")},
}

// ErrUninstallFailed means the instance did not confirm the removal.
var ErrUninstallFailed = errors.New("the plugin could not be uninstalled")

func listAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	plugins, err := s.upm.List(ctx, !cmd.Bool("all"))
	if err != nil {
		return err
	}
	if err := renderPlugins(stdout(cmd), outputFormat(s.settings), plugins); err != nil {
		return err
	}

	s.openUPMIf(cmd)
	return nil
}

func infoAction(ctx context.Context, cmd *cli.Command) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	p, err := s.upm.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := renderPlugin(stdout(cmd), outputFormat(s.settings), p, cmd.Bool("show-modules")); err != nil {
		return err
	}

	s.openUPMIf(cmd)
	return nil
}

func setEnabledAction(ctx context.Context, cmd *cli.Command, enabled bool) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	p, err := s.upm.SetEnabled(ctx, key, enabled)
	if err != nil {
		return err
	}
	if err := renderPlugin(stdout(cmd), outputFormat(s.settings), p, false); err != nil {
		return err
	}

	s.openUPMIf(cmd)
	return nil
}

func uninstallAction(ctx context.Context, cmd *cli.Command) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	ok, err := s.upm.Uninstall(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUninstallFailed
	}
	log.Info("Plugin successfully uninstalled", "key", key)

	s.openUPMIf(cmd)
	return nil
}
