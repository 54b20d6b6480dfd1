package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"

	"github.com/rubiojr/plup/internal/log"
)

// progressReporter draws install progress as a bar on terminals and as log
// lines everywhere else.
type progressReporter struct {
	w    io.Writer
	bar  progress.Model
	tty  bool
	last int
}

func newProgressReporter(f *os.File) *progressReporter {
	return &progressReporter{
		w:    f,
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		tty:  isatty.IsTerminal(f.Fd()),
		last: -1,
	}
}

// Observe is an install.Observer.
func (p *progressReporter) Observe(pct int) {
	if p.tty {
		fmt.Fprintf(p.w, "\rInstalling... %s", p.bar.ViewAs(float64(pct)/100))
		p.last = pct
		return
	}
	if pct != p.last {
		log.Info("Installing...", "progress", pct)
		p.last = pct
	}
}

// Done ends the bar line.
func (p *progressReporter) Done() {
	if p.tty && p.last >= 0 {
		fmt.Fprintln(p.w)
	}
}
