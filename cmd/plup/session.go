package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/rubiojr/plup/internal/config"
	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/maven"
	"github.com/rubiojr/plup/internal/plupfs"
	"github.com/rubiojr/plup/internal/remote"
	"github.com/rubiojr/plup/internal/upm"
)

// UPMPath is the plugin manager page of the remote instance.
const UPMPath = "/plugins/servlet/upm"

// session is everything one command needs to talk to the instance.
type session struct {
	settings *config.Settings
	remote   *remote.Client
	upm      *upm.Client
}

// loadSettings resolves config file, .pluprc layers, environment and flags,
// in that order.
func loadSettings(cmd *cli.Command) (*config.Settings, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	s, err := config.Resolve(cmd.String("config"), plupfs.UserHome(), cwd)
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("base-url") {
		s.BaseURL = cmd.String("base-url")
	}
	if cmd.IsSet("user") {
		s.User = cmd.String("user")
	}
	if cmd.IsSet("password") {
		s.Password = cmd.String("password")
	}
	if cmd.IsSet("port") {
		s.Port = cmd.Int("port")
	}
	if cmd.IsSet("cloud") {
		s.Cloud = cmd.Bool("cloud")
	}
	if cmd.IsSet("output") {
		s.OutputFormat = cmd.String("output")
	}

	if cmd.Bool("ask-for-password") {
		pw, err := readPassword(os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
		s.Password = pw
	}

	return s, nil
}

func newSession(cmd *cli.Command) (*session, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	ep, err := s.Endpoint()
	if err != nil {
		return nil, err
	}
	log.Debug("Using instance", "url", ep.Redacted(), "user", ep.User(), "cloud", s.Cloud)

	rc := remote.NewClient(ep)
	return &session{settings: s, remote: rc, upm: upm.NewClient(rc)}, nil
}

func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// pluginKey returns the first argument, falling back to the plugin key of
// the enclosing Maven project.
func pluginKey(cmd *cli.Command) (string, error) {
	if key := cmd.Args().First(); key != "" {
		return key, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	project, err := maven.Load(cwd)
	if err != nil {
		if errors.Is(err, maven.ErrNoProject) {
			return "", errors.New("no plugin key given and no pom.xml found: are you in a maven directory?")
		}
		return "", err
	}
	key, err := project.PluginKey()
	if err != nil {
		return "", fmt.Errorf("no plugin key given: is %s set in the pom.xml? (%w)", maven.PluginKeyProperty, err)
	}
	log.Debug("Using plugin key from pom.xml", "key", key, "project", project.Root)
	return key, nil
}

// openWeb shows path of the instance in a browser. The credentials never
// leave the process: the endpoint carries them separately.
func openWeb(ep remote.Endpoint, path string) {
	u := ep.URL(path, nil)
	browser.Stdout = os.Stderr
	if err := browser.OpenURL(u.String()); err != nil {
		log.Warn("Could not open browser", "url", u.String(), "error", err)
	}
}

func webFlag(usage string) cli.Flag {
	return &cli.BoolFlag{Name: "web", Usage: usage}
}

func (s *session) openUPMIf(cmd *cli.Command) {
	if cmd.Bool("web") {
		openWeb(s.remote.Endpoint(), UPMPath)
	}
}
