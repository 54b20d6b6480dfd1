package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/maven"
	"github.com/rubiojr/plup/internal/plupfs"
	"github.com/rubiojr/plup/internal/remote"
)

// RCFile is the per-directory override file name.
const RCFile = ".pluprc"

const (
	DefaultUser        = "admin"
	DefaultPassword    = "admin"
	DefaultOutput      = "table"
	DefaultPollTimeout = "10m"
)

// Settings holds everything plup needs to reach a remote instance.
type Settings struct {
	BaseURL      string `toml:"base_url" yaml:"base_url"`
	User         string `toml:"user" yaml:"user"`
	Password     string `toml:"password" yaml:"password"`
	Port         int    `toml:"port,omitempty" yaml:"port,omitempty"`
	Cloud        bool   `toml:"cloud" yaml:"cloud"`
	OutputFormat string `toml:"output" yaml:"output"`
	PollTimeout  string `toml:"poll_timeout" yaml:"poll_timeout"`
}

// rcLayer is a .pluprc document. Only keys present in the file override the
// lower layers.
type rcLayer struct {
	BaseURL      *string `yaml:"base_url"`
	User         *string `yaml:"user"`
	Password     *string `yaml:"password"`
	Port         *int    `yaml:"port"`
	Cloud        *bool   `yaml:"cloud"`
	OutputFormat *string `yaml:"output"`
	PollTimeout  *string `yaml:"poll_timeout"`
}

func Defaults() *Settings {
	return &Settings{
		BaseURL:      remote.DefaultBaseURL,
		User:         DefaultUser,
		Password:     DefaultPassword,
		OutputFormat: DefaultOutput,
		PollTimeout:  DefaultPollTimeout,
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(plupfs.ConfigDir(), "config.toml")
}

// Load reads and parses a TOML config file.
// Returns the defaults if the file does not exist.
func Load(path string) (*Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return s, nil
}

// Save writes the settings to the given path in TOML format.
// Parent directories are created if they don't exist.
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// the file may carry a password
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// RCFiles lists the existing .pluprc files in override order: home
// directory, enclosing Maven project root, working directory.
func RCFiles(home, cwd string) []string {
	candidates := []string{filepath.Join(home, RCFile)}
	if root, err := maven.FindRoot(cwd); err == nil {
		candidates = append(candidates, filepath.Join(root, RCFile))
	}
	candidates = append(candidates, filepath.Join(cwd, RCFile))

	seen := map[string]bool{}
	var files []string
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			abs = c
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		if st, err := os.Stat(abs); err == nil && !st.IsDir() {
			files = append(files, abs)
		}
	}
	return files
}

// ApplyRC merges each file over s in order. Files that cannot be read or
// parsed are logged and skipped. Returns the files that were applied.
func ApplyRC(s *Settings, files []string) []string {
	var applied []string
	for _, f := range files {
		layer, err := readRC(f)
		if err != nil {
			log.Warn("Ignoring config file", "path", f, "error", err)
			continue
		}
		layer.apply(s)
		applied = append(applied, f)
	}
	return applied
}

func readRC(path string) (*rcLayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", RCFile, err)
	}
	var layer rcLayer
	if err := yaml.Unmarshal(data, &layer); err != nil {
		return nil, fmt.Errorf("looks like %s is not yaml: %w", RCFile, err)
	}
	return &layer, nil
}

func (l *rcLayer) apply(s *Settings) {
	if l.BaseURL != nil {
		s.BaseURL = *l.BaseURL
	}
	if l.User != nil {
		s.User = *l.User
	}
	if l.Password != nil {
		s.Password = *l.Password
	}
	if l.Port != nil {
		s.Port = *l.Port
	}
	if l.Cloud != nil {
		s.Cloud = *l.Cloud
	}
	if l.OutputFormat != nil {
		s.OutputFormat = *l.OutputFormat
	}
	if l.PollTimeout != nil {
		s.PollTimeout = *l.PollTimeout
	}
}

// Resolve loads the TOML file at path and layers every .pluprc found from
// home and cwd on top of it.
func Resolve(path, home, cwd string) (*Settings, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	for _, f := range ApplyRC(s, RCFiles(home, cwd)) {
		log.Debug("Applied config layer", "path", f)
	}
	return s, nil
}

// Timeout parses PollTimeout. An empty value or "0" disables the deadline.
func (s *Settings) Timeout() (time.Duration, error) {
	if s.PollTimeout == "" || s.PollTimeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.PollTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid poll timeout %q: %w", s.PollTimeout, err)
	}
	if d < 0 {
		return 0, errors.New("poll timeout must not be negative")
	}
	return d, nil
}

// Masked returns a copy safe to print.
func (s Settings) Masked() Settings {
	if s.Password != "" {
		s.Password = "********"
	}
	return s
}

// Endpoint builds the remote target described by the settings.
func (s *Settings) Endpoint() (remote.Endpoint, error) {
	return remote.NewEndpoint(s.BaseURL, s.User, s.Password, s.Port)
}
