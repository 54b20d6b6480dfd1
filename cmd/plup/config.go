package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/config"
	"github.com/rubiojr/plup/internal/log"
)

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Show or persist the resolved settings",
	Commands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "Print the settings after applying config file, .pluprc files, environment and flags",
			Action: configShowAction,
		},
		{
			Name:   "save",
			Usage:  "Write the resolved settings to the config file",
			Action: configSaveAction,
		},
	},
}

func configShowAction(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	masked := s.Masked()
	w := stdout(cmd)
	if done, err := writeStructured(w, outputFormat(s), masked); done || err != nil {
		return err
	}

	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Base url", masked.BaseURL},
		{"User", masked.User},
		{"Password", masked.Password},
		{"Port", masked.Port},
		{"Cloud", masked.Cloud},
		{"Output", masked.OutputFormat},
		{"Poll timeout", masked.PollTimeout},
		{"Config file", cmd.String("config")},
	})
	t.Render()
	return nil
}

func configSaveAction(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	path := cmd.String("config")
	if err := config.Save(path, s); err != nil {
		return err
	}
	log.Info("Settings saved", "path", path)
	return nil
}
