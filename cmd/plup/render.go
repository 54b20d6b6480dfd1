package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/rubiojr/plup/internal/config"
	"github.com/rubiojr/plup/internal/upm"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func enabledMark(enabled bool) string {
	if enabled {
		return okStyle.Render("✓")
	}
	return warnStyle.Render("!")
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func checkFormat(format string) error {
	switch format {
	case "", formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

// writeStructured prints v as JSON or YAML and reports whether it did. Table
// output is left to the caller.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		data, err := toYAML(v)
		if err != nil {
			return true, err
		}
		_, err = w.Write(data)
		return true, err
	}
	return false, checkFormat(format)
}

// toYAML reuses the json tags of v so both formats share field names and
// field order.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func outputFormat(s *config.Settings) string {
	if s.OutputFormat == "" {
		return formatTable
	}
	return strings.ToLower(s.OutputFormat)
}

func renderPlugins(w io.Writer, format string, plugins []upm.Plugin) error {
	if done, err := writeStructured(w, format, plugins); done || err != nil {
		return err
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"", "Name", "Version", "Plugin Key"})
	for _, p := range plugins {
		t.AppendRow(table.Row{enabledMark(p.Enabled), p.Name, p.Version, p.Key})
	}
	t.Render()
	return nil
}

func renderPlugin(w io.Writer, format string, p *upm.Plugin, showModules bool) error {
	if !showModules && format != formatTable && format != "" {
		trimmed := *p
		trimmed.Modules = nil
		p = &trimmed
	}
	if done, err := writeStructured(w, format, p); done || err != nil {
		return err
	}

	counts := p.ModuleCounts()
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Key", p.Key},
		{"Name", p.Name},
		{"Version", p.Version},
		{"Enabled", enabledMark(p.Enabled)},
		{"User installed", p.UserInstalled},
		{"Description", p.Description},
		{"Modules", fmt.Sprintf("%d of %d enabled", counts.Enabled, counts.Total)},
	})
	t.Render()

	if showModules && len(p.Modules) > 0 {
		mt := newTable(w)
		mt.AppendHeader(table.Row{"", "Module", "Key"})
		for _, m := range p.Modules {
			mt.AppendRow(table.Row{enabledMark(m.Enabled), m.Name, m.Key})
		}
		mt.Render()
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return dimStyle.Render("-")
	}
	return s
}
