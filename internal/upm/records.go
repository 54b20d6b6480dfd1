package upm

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/rubiojr/plup/internal/remote"
)

// Module is one module of a plugin (a servlet, a macro, a job...).
type Module struct {
	CompleteKey      string `json:"completeKey"`
	Key              string `json:"key"`
	Name             string `json:"name"`
	Enabled          bool   `json:"enabled"`
	Optional         bool   `json:"optional"`
	RecognisableType bool   `json:"recognisableType"`
	Broken           bool   `json:"broken"`
}

// Plugin is a plugin as reported by the plugin manager.
type Plugin struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Enabled       bool     `json:"enabled"`
	UserInstalled bool     `json:"userInstalled"`
	Description   string   `json:"description"`
	Modules       []Module `json:"modules"`
}

// ModuleCounts summarises the enablement of a plugin's modules.
// Enabled + len(Disabled) == Total always holds.
type ModuleCounts struct {
	Total    int
	Enabled  int
	Disabled []Module
}

// AllDisabled reports a plugin that has modules but none of them enabled,
// which usually points at a broken installation.
func (c ModuleCounts) AllDisabled() bool {
	return c.Total > 0 && c.Enabled == 0
}

func (p *Plugin) ModuleCounts() ModuleCounts {
	counts := ModuleCounts{Total: len(p.Modules), Disabled: []Module{}}
	for _, m := range p.Modules {
		if m.Enabled {
			counts.Enabled++
			continue
		}
		counts.Disabled = append(counts.Disabled, m)
	}
	return counts
}

var (
	pluginRequired = []string{"key", "name", "version", "enabled", "userInstalled", "description"}
	moduleRequired = []string{"key"}
)

// DecodePlugin decodes a plugin resource. A payload missing any of the
// identifying fields yields a *remote.MalformedResponseError carrying the raw
// body; a missing module list decodes to an empty one.
func DecodePlugin(raw []byte) (*Plugin, error) {
	if err := requireFields("plugin", raw, pluginRequired); err != nil {
		return nil, err
	}

	var shape struct {
		Plugin
		Modules []json.RawMessage `json:"modules"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, &remote.MalformedResponseError{Kind: "plugin", Raw: raw, Err: err}
	}

	p := shape.Plugin
	p.Modules = make([]Module, 0, len(shape.Modules))
	for _, mraw := range shape.Modules {
		m, err := decode[Module]("module", mraw, moduleRequired)
		if err != nil {
			return nil, &remote.MalformedResponseError{Kind: "plugin", Raw: raw, Err: err}
		}
		p.Modules = append(p.Modules, *m)
	}
	return &p, nil
}

// decode unmarshals raw into a T after checking the required fields exist and
// are not null.
func decode[T any](kind string, raw []byte, required []string) (*T, error) {
	if err := requireFields(kind, raw, required); err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &remote.MalformedResponseError{Kind: kind, Raw: raw, Err: err}
	}
	return &v, nil
}

func requireFields(kind string, raw []byte, required []string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &remote.MalformedResponseError{Kind: kind, Raw: raw, Err: err}
	}
	if fields == nil {
		return &remote.MalformedResponseError{Kind: kind, Missing: slices.Clone(required), Raw: raw}
	}

	var missing []string
	for _, name := range required {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &remote.MalformedResponseError{Kind: kind, Missing: missing, Raw: raw}
	}
	return nil
}
