package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/upm"
)

var licenseCmd = &cli.Command{
	Name:  "license",
	Usage: "Get and set license information of plugins",
	Commands: []*cli.Command{
		{
			Name:      "info",
			Usage:     "Show the license of a plugin",
			ArgsUsage: "[plugin-key]",
			Action:    licenseInfoAction,
		},
		{
			Name:      "update",
			Usage:     "Replace the license of a plugin",
			ArgsUsage: "[plugin-key]",
			Action:    licenseUpdateAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "license",
					Usage:    "The raw license to install",
					Required: true,
				},
			},
		},
		{
			Name:      "delete",
			Usage:     "Remove the license of a plugin",
			ArgsUsage: "[plugin-key]",
			Action:    licenseDeleteAction,
		},
		{
			Name:      "timebomb",
			Usage:     "Install a short lived test license",
			ArgsUsage: "[plugin-key]",
			Action:    licenseTimebombAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "timebomb",
					Usage: "One of " + strings.Join(upm.TimebombNames(), ", "),
					Value: upm.TimebombThreeHours,
				},
			},
		},
		accessTokenCmd,
	},
}

var accessTokenCmd = &cli.Command{
	Name:  "access-token",
	Usage: "Manage access tokens of paid plugins (managed instances only)",
	Commands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "List all access tokens",
			Action: accessTokenListAction,
		},
		{
			Name:      "info",
			Usage:     "Show the access token of a plugin",
			ArgsUsage: "[plugin-key]",
			Action:    accessTokenInfoAction,
		},
		{
			Name:      "update",
			Usage:     "Set the access token of a plugin",
			ArgsUsage: "[plugin-key]",
			Action:    accessTokenUpdateAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "token",
					Usage:    "The access token",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "state",
					Usage: "Token state: " + tokenStateList(),
					Value: string(upm.TokenActiveSubscription),
				},
			},
		},
		{
			Name:      "delete",
			Usage:     "Remove the access token of a plugin",
			ArgsUsage: "[plugin-key]",
			Action:    accessTokenDeleteAction,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "clear",
					Usage: "Submit an empty token instead of deleting the resource",
				},
			},
		},
	},
}

func tokenStateList() string {
	states := upm.TokenStates()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func licenseInfoAction(ctx context.Context, cmd *cli.Command) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	lic, err := s.upm.License(ctx, key)
	if err != nil {
		return err
	}
	return renderLicense(stdout(cmd), outputFormat(s.settings), lic)
}

func licenseUpdateAction(ctx context.Context, cmd *cli.Command) error {
	return updateLicense(ctx, cmd, cmd.String("license"))
}

func licenseTimebombAction(ctx context.Context, cmd *cli.Command) error {
	raw, err := upm.TimebombLicense(cmd.String("timebomb"))
	if err != nil {
		return err
	}
	return updateLicense(ctx, cmd, raw)
}

func updateLicense(ctx context.Context, cmd *cli.Command, raw string) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	lic, err := s.upm.UpdateLicense(ctx, key, raw)
	if err != nil {
		return err
	}
	return renderLicense(stdout(cmd), outputFormat(s.settings), lic)
}

func licenseDeleteAction(ctx context.Context, cmd *cli.Command) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	lic, err := s.upm.DeleteLicense(ctx, key)
	if err != nil {
		return err
	}
	if err := renderLicense(stdout(cmd), outputFormat(s.settings), lic); err != nil {
		return err
	}
	log.Warn("The license shown is the removed one. Run 'plup license info' to check the removal succeeded")
	return nil
}

func renderLicense(w io.Writer, format string, lic *upm.License) error {
	if done, err := writeStructured(w, format, lic); done || err != nil {
		return err
	}

	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Plugin key", lic.PluginKey},
		{"Valid", enabledMark(lic.Valid)},
		{"Error", orDash(lic.Error)},
		{"Evaluation", lic.Evaluation},
		{"Nearly expired", lic.NearlyExpired},
		{"Max users", optional(lic.MaximumNumberOfUsers)},
		{"License type", orDash(lic.LicenseType)},
		{"Expiry date", expiry(lic.ExpiryDate)},
		{"Active", optional(lic.Active)},
		{"SEN", orDash(lic.SupportEntitlementNumber)},
		{"Auto renewal", optional(lic.AutoRenewal)},
	})
	t.Render()
	return nil
}

func optional[T any](v *T) string {
	if v == nil {
		return orDash("")
	}
	return fmt.Sprint(*v)
}

// expiry formats a millisecond epoch.
func expiry(ms *int64) string {
	if ms == nil {
		return orDash("")
	}
	return time.UnixMilli(*ms).Format(time.DateTime)
}

func accessTokenListAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	tokens, err := s.upm.AccessTokens(ctx)
	if err != nil {
		return err
	}
	return renderAccessTokens(stdout(cmd), outputFormat(s.settings), tokens)
}

func accessTokenInfoAction(ctx context.Context, cmd *cli.Command) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	tok, err := s.upm.AccessToken(ctx, key)
	if err != nil {
		return err
	}
	return renderAccessTokens(stdout(cmd), outputFormat(s.settings), []upm.AccessToken{*tok})
}

func accessTokenUpdateAction(ctx context.Context, cmd *cli.Command) error {
	state, err := upm.ParseTokenState(cmd.String("state"))
	if err != nil {
		return err
	}
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	tok, err := s.upm.UpdateAccessToken(ctx, key, cmd.String("token"), state)
	if err != nil {
		return err
	}
	return renderAccessTokens(stdout(cmd), outputFormat(s.settings), []upm.AccessToken{*tok})
}

func accessTokenDeleteAction(ctx context.Context, cmd *cli.Command) error {
	key, err := pluginKey(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("clear") {
		tok, err := s.upm.ClearAccessToken(ctx, key)
		if err != nil {
			return err
		}
		return renderAccessTokens(stdout(cmd), outputFormat(s.settings), []upm.AccessToken{*tok})
	}

	if err := s.upm.DeleteAccessToken(ctx, key); err != nil {
		return err
	}
	log.Info("Access token deleted", "key", key)
	return nil
}

func renderAccessTokens(w io.Writer, format string, tokens []upm.AccessToken) error {
	if done, err := writeStructured(w, format, tokens); done || err != nil {
		return err
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"", "Plugin Key", "State", "Token"})
	for _, tok := range tokens {
		t.AppendRow(table.Row{enabledMark(tok.Valid), tok.PluginKey, tok.State, orDash(tok.Token)})
	}
	t.Render()
	return nil
}
