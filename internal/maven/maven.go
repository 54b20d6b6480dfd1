// Package maven locates the enclosing Maven project of a plugin and reads
// what plup needs from its pom.xml.
package maven

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const PomFile = "pom.xml"

// PluginKeyProperty is the pom property holding the plugin key.
const PluginKeyProperty = "atlassian.plugin.key"

var (
	ErrNoProject   = errors.New("no " + PomFile + " found in this or any parent directory")
	ErrNoPluginKey = errors.New("no " + PluginKeyProperty + " property in " + PomFile)
)

// Project is the subset of a pom.xml plup reads.
type Project struct {
	Root       string
	GroupID    string
	ArtifactID string
	Version    string
	Packaging  string
	Properties map[string]string
}

type pom struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Packaging  string `xml:"packaging"`
	Parent     struct {
		GroupID string `xml:"groupId"`
		Version string `xml:"version"`
	} `xml:"parent"`
	Properties struct {
		Entries []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"properties"`
}

// FindRoot walks up from dir to the first directory containing a pom.xml.
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, PomFile)); err == nil && !fi.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProject
		}
		dir = parent
	}
}

// Load finds and parses the project enclosing dir.
func Load(dir string) (*Project, error) {
	root, err := FindRoot(dir)
	if err != nil {
		return nil, err
	}
	return Parse(root)
}

// Parse reads root/pom.xml.
func Parse(root string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(root, PomFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", PomFile, err)
	}

	var p pom
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid %s in %s: %w", PomFile, root, err)
	}

	proj := &Project{
		Root:       root,
		GroupID:    strings.TrimSpace(p.GroupID),
		ArtifactID: strings.TrimSpace(p.ArtifactID),
		Version:    strings.TrimSpace(p.Version),
		Packaging:  strings.TrimSpace(p.Packaging),
		Properties: map[string]string{},
	}
	if proj.GroupID == "" {
		proj.GroupID = strings.TrimSpace(p.Parent.GroupID)
	}
	if proj.Version == "" {
		proj.Version = strings.TrimSpace(p.Parent.Version)
	}
	for _, e := range p.Properties.Entries {
		proj.Properties[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}
	return proj, nil
}

// PluginKey returns the atlassian.plugin.key property.
func (p *Project) PluginKey() (string, error) {
	key := p.Properties[PluginKeyProperty]
	if key == "" {
		return "", ErrNoPluginKey
	}
	return p.interpolate(key), nil
}

// ArtifactPath is the jar the last package build produced:
// target/<artifactId>-<version>.jar.
func (p *Project) ArtifactPath() (string, error) {
	if p.ArtifactID == "" || p.Version == "" {
		return "", fmt.Errorf("%s lacks artifactId or version", filepath.Join(p.Root, PomFile))
	}
	name := fmt.Sprintf("%s-%s.jar", p.ArtifactID, p.Version)
	return filepath.Join(p.Root, "target", name), nil
}

// interpolate resolves the ${project.*} references commonly used in the
// plugin key property.
func (p *Project) interpolate(s string) string {
	return strings.NewReplacer(
		"${project.groupId}", p.GroupID,
		"${project.artifactId}", p.ArtifactID,
		"${project.version}", p.Version,
	).Replace(s)
}
