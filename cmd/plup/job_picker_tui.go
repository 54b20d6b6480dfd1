package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/rubiojr/plup/internal/jobs"
)

// Styles
var (
	jpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	jpSelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	jpNormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	jpDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	jpBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
)

var errPickerCancelled = errors.New("job selection cancelled")

// jobPickerModel is the bubbletea model for picking a scheduled job.
type jobPickerModel struct {
	jobs     []jobs.Job
	filtered []int // indexes into jobs
	cursor   int
	filter   textinput.Model
	chosen   int
	width    int
	height   int
}

// jobPrompter picks the TUI when a terminal is attached and falls back to the
// numbered prompt otherwise.
func jobPrompter() jobs.Prompter {
	if isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd()) {
		return pickJobTUI
	}
	return jobs.NumberedPrompt(os.Stdin, os.Stderr)
}

func pickJobTUI(list []jobs.Job) (int, error) {
	m := newJobPickerModel(list)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return -1, err
	}
	picked := final.(*jobPickerModel)
	if picked.chosen < 0 {
		return -1, errPickerCancelled
	}
	return picked.chosen, nil
}

func newJobPickerModel(list []jobs.Job) *jobPickerModel {
	ti := textinput.New()
	ti.Placeholder = "Type to filter by name, group or id..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.Focus()

	m := &jobPickerModel{
		jobs:   list,
		filter: ti,
		chosen: -1,
	}
	m.rebuildFiltered()
	return m
}

func (m *jobPickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *jobPickerModel) rebuildFiltered() {
	query := strings.ToLower(m.filter.Value())
	m.filtered = m.filtered[:0]
	for i, j := range m.jobs {
		target := strings.ToLower(j.Name + " " + j.Group + " " + j.ID)
		if query == "" || strings.Contains(target, query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(len(m.filtered)-1, 0)
	}
}

func (m *jobPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if len(m.filtered) > 0 {
				m.chosen = m.filtered[m.cursor]
				return m, tea.Quit
			}
			return m, nil
		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+n":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.rebuildFiltered()
	return m, cmd
}

func (m *jobPickerModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := jpTitleStyle.Render("Scheduled jobs")
	search := "  " + m.filter.View() + "\n"

	listHeight := max(m.height-7, 5)

	var b strings.Builder
	if len(m.filtered) == 0 {
		b.WriteString("\n  No matching jobs.\n")
	} else {
		start := 0
		if m.cursor >= listHeight {
			start = m.cursor - listHeight + 1
		}
		end := min(start+listHeight, len(m.filtered))

		nameWidth := max((m.width-20)/3, 10)
		for i := start; i < end; i++ {
			idx := m.filtered[i]
			j := m.jobs[idx]
			line := fmt.Sprintf(" %3d %s %-*s %-*s %s",
				idx, runnableMark(j), nameWidth, truncate(j.Name, nameWidth),
				nameWidth, truncate(j.Group, nameWidth), jpDimStyle.Render(j.ID))
			if i == m.cursor {
				line = jpSelectedStyle.Render(line)
			} else {
				line = jpNormalStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	contentHeight := max(m.height-4, 5)
	box := jpBorderStyle.Width(m.width - 2).Height(contentHeight - 2).Render(search + b.String())

	status := fmt.Sprintf(" %d/%d jobs", len(m.filtered), len(m.jobs))
	help := jpDimStyle.Render("↑/↓ move  ↵ select  esc cancel")

	return lipgloss.JoinVertical(lipgloss.Left, title, box, status+"  "+help)
}

func runnableMark(j jobs.Job) string {
	if j.IsRunnable {
		return okStyle.Render("✓")
	}
	return errStyle.Render("!")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
