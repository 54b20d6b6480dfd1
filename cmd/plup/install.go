package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/cache"
	"github.com/rubiojr/plup/internal/artifact"
	"github.com/rubiojr/plup/internal/install"
	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/marketplace"
	"github.com/rubiojr/plup/internal/maven"
	"github.com/rubiojr/plup/internal/plupfs"
	"github.com/rubiojr/plup/internal/upm"
)

// watchDebounce lets a build finish writing the artifact before reinstalling.
const watchDebounce = 500 * time.Millisecond

var installCmd = &cli.Command{
	Name:  "install",
	Usage: "Install the plugin of the current Maven project or the given one (the default command)",
	Description: `Without a source the artifact of the enclosing Maven project
(target/<artifactId>-<version>.jar) is installed.

Marketplace sources accept a version with the == syntax, e.g. --mpac-key com.example.app==1.2.3.`,
	Action: installAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Path of the jar or obr to install",
		},
		&cli.StringFlag{
			Name:  "mpac-id",
			Usage: "Download the app with this marketplace id first (unstable, prefer --mpac-key)",
		},
		&cli.StringFlag{
			Name:  "mpac-key",
			Usage: "Download the app with this key from the marketplace first",
		},
		&cli.StringFlag{
			Name:    "plugin-uri",
			Aliases: []string{"u"},
			Usage:   "Managed instances only: url of the app descriptor, e.g. https://example.ngrok.io/atlassian-connect.json",
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "Ask for confirmation before uploading",
		},
		&cli.BoolFlag{
			Name:  "reinstall",
			Usage: "Uninstall the plugin before installing it",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Keep running and reinstall whenever the artifact changes",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Give up waiting for the installation after this long (0 waits forever)",
		},
		webFlag("Open the plugin manager in a browser afterwards"),
	},
}

func installAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	policy, err := installPolicy(cmd, s)
	if err != nil {
		return err
	}

	if s.settings.Cloud {
		uri := cmd.String("plugin-uri")
		if uri == "" {
			return errors.New("--plugin-uri is required when --cloud is set")
		}
		if err := installManaged(ctx, s, uri, policy); err != nil {
			return err
		}
		s.openUPMIf(cmd)
		return nil
	}

	path, err := resolveArtifact(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("interactive") && !confirm(os.Stdin, os.Stderr, "Do you really want to upload and install the plugin?") {
		log.Info("Installation cancelled")
		return nil
	}

	opts := serverInstall{path: path, reinstall: cmd.Bool("reinstall"), policy: policy}
	if err := installServer(ctx, s, opts); err != nil {
		return err
	}
	s.openUPMIf(cmd)

	if cmd.Bool("watch") {
		log.Info("Watching for changes, press ctrl+c to stop", "path", path)
		return watchArtifact(ctx, path, watchDebounce, func() error {
			return installServer(ctx, s, opts)
		})
	}
	return nil
}

func installPolicy(cmd *cli.Command, s *session) (install.Policy, error) {
	policy := install.DefaultPolicy()
	if cmd.IsSet("timeout") {
		policy.Timeout = cmd.Duration("timeout")
		return policy, nil
	}
	timeout, err := s.settings.Timeout()
	if err != nil {
		return policy, err
	}
	policy.Timeout = timeout
	return policy, nil
}

// resolveArtifact finds the file to upload: an explicit path, a marketplace
// download or the artifact of the enclosing Maven project.
func resolveArtifact(ctx context.Context, cmd *cli.Command) (string, error) {
	if f := cmd.String("file"); f != "" {
		return f, nil
	}

	if id := cmd.String("mpac-id"); id != "" {
		id, version := marketplace.SplitNameAndVersion(id)
		log.Info("Downloading app", "id", id, "version", version)
		path, err := newMarketplace().DownloadByID(ctx, id, version)
		if err != nil {
			return "", fmt.Errorf("could not download app %s (%s): %w", id, version, err)
		}
		log.Info("Successfully downloaded app", "path", path)
		return path, nil
	}

	if key := cmd.String("mpac-key"); key != "" {
		key, version := marketplace.SplitNameAndVersion(key)
		log.Info("Downloading app", "key", key, "version", version)
		path, err := newMarketplace().DownloadByKey(ctx, key, version)
		if err != nil {
			return "", fmt.Errorf("could not download app %s (%s): %w", key, version, err)
		}
		log.Info("Successfully downloaded app", "path", path)
		return path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	project, err := maven.Load(cwd)
	if err != nil {
		return "", fmt.Errorf("could not find the plugin to install, are you in a maven directory? (%w)", err)
	}
	return project.ArtifactPath()
}

// newMarketplace returns a marketplace client remembering lookups in the
// user cache when it can be opened.
func newMarketplace() *marketplace.Client {
	if err := os.MkdirAll(plupfs.DataDir(), 0755); err != nil {
		log.Debug("Marketplace cache disabled", "error", err)
		return marketplace.NewClient()
	}
	ch, err := cache.NewCache(plupfs.CachePath())
	if err != nil {
		log.Debug("Marketplace cache disabled", "error", err)
		return marketplace.NewClient()
	}
	return marketplace.NewClient(marketplace.WithCache(ch))
}

func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s (y/N) ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

type serverInstall struct {
	path      string
	reinstall bool
	policy    install.Policy
}

func installServer(ctx context.Context, s *session, opts serverInstall) error {
	desc, err := artifact.Inspect(opts.path)
	if err != nil {
		return fmt.Errorf("could not get the plugin key of %s, is it a plugin? (%w)", opts.path, err)
	}
	log.Debug("Inspected artifact", "key", desc.Key, "version", desc.Version, "mime", desc.MIME)

	if opts.reinstall {
		ok, err := s.upm.Uninstall(ctx, desc.Key)
		if err != nil {
			return err
		}
		if ok {
			log.Info("Plugin successfully uninstalled", "key", desc.Key)
		} else {
			log.Error("The plugin could not be uninstalled", "key", desc.Key)
		}
	} else {
		warnDowngrade(ctx, s, desc)
	}

	log.Info(fmt.Sprintf("%s will be uploaded to %s", filepath.Base(opts.path), s.remote.Endpoint().Redacted()))

	bar := newProgressReporter(os.Stderr)
	res, err := install.Install(ctx, s.remote, install.SelfHosted, install.Source{Path: opts.path}, opts.policy, bar.Observe)
	bar.Done()
	if err != nil {
		return err
	}
	log.Debug("Installation finished", "polls", res.Attempts, "elapsed", res.Elapsed)

	p := res.Plugin
	if p == nil {
		if p, err = s.upm.Get(ctx, desc.Key); err != nil {
			return fmt.Errorf("installation finished but the plugin could not be read back: %w", err)
		}
	}
	reportInstalled(p)
	return nil
}

func warnDowngrade(ctx context.Context, s *session, desc *artifact.Descriptor) {
	installed, found, err := s.upm.Installed(ctx, desc.Key)
	if err != nil {
		log.Debug("Could not read the installed version", "key", desc.Key, "error", err)
		return
	}
	if found && upm.IsDowngrade(installed.Version, desc.Version) {
		log.Warn(fmt.Sprintf("Looks like you are trying to install a lower version (%s) than already installed (%s). "+
			"This will most likely fail. Use --reinstall to uninstall the plugin first.", desc.Version, installed.Version))
	}
}

func installManaged(ctx context.Context, s *session, uri string, policy install.Policy) error {
	log.Info(fmt.Sprintf("%s will be installed on %s", uri, s.remote.Endpoint().Redacted()))

	bar := newProgressReporter(os.Stderr)
	res, err := install.Install(ctx, s.remote, install.Managed, install.Source{PluginURI: uri}, policy, bar.Observe)
	bar.Done()
	if err != nil {
		return err
	}

	if res.Plugin == nil {
		log.Info("Plugin installed")
		return nil
	}
	reportInstalled(res.Plugin)
	return nil
}

// reportInstalled logs the final state of p and its modules.
func reportInstalled(p *upm.Plugin) {
	counts := p.ModuleCounts()

	state := okStyle.Render("enabled")
	if !p.Enabled {
		state = errStyle.Render("disabled")
	}
	log.Info(fmt.Sprintf("Plugin %s (%s, v%s) uploaded and %s (%d of %d modules enabled)",
		p.Name, p.Key, p.Version, state, counts.Enabled, counts.Total))
	if !p.Enabled {
		log.Warn("Check the logs of your instance to find out why the plugin was disabled")
	}

	switch {
	case counts.AllDisabled():
		log.Error("The plugin was installed but all modules are disabled. This is often caused by " +
			"importing services that are not properly defined in the atlassian-plugin.xml. " +
			"Check the logs of your instance to find out more.")
	case len(counts.Disabled) > 0:
		for _, m := range counts.Disabled {
			log.Info(fmt.Sprintf("   - %s is disabled", m.Key))
		}
	}
}
