package upm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
)

const safeModePath = remote.PluginRegistryPath + "safe-mode"

type safeModeFlag struct {
	Enabled *bool           `json:"enabled"`
	SubCode string          `json:"subCode,omitempty"`
	Links   json.RawMessage `json:"links,omitempty"`
}

// SafeMode reports whether the instance runs in safe mode (all user
// installed plugins disabled).
func (c *Client) SafeMode(ctx context.Context) (bool, error) {
	resp, err := c.send(ctx, http.MethodGet, safeModePath, nil, "", nil)
	if err != nil {
		return false, err
	}
	if err := expect(resp, http.MethodGet, safeModePath, "safe mode"); err != nil {
		return false, err
	}

	flag, err := decodeSafeMode(resp.Body)
	if err != nil {
		return false, err
	}
	return *flag.Enabled, nil
}

// SetSafeMode enters or leaves safe mode. When leaving with keepState the
// plugin states of the safe mode session are kept. The returned bool is true
// only when the server echoes the requested state without an error sub-code.
func (c *Client) SetSafeMode(ctx context.Context, enabled, keepState bool) (bool, error) {
	body := map[string]any{
		"enabled": enabled,
		"links":   map[string]any{},
	}
	query := url.Values{"keepState": {strconv.FormatBool(keepState)}}
	resp, err := c.send(ctx, http.MethodPut, safeModePath, query, SafeModeContentType, body)
	if err != nil {
		return false, err
	}

	flag, err := decodeSafeMode(resp.Body)
	if err != nil {
		if !resp.OK() {
			return false, expect(resp, http.MethodPut, safeModePath, "safe mode")
		}
		return false, err
	}
	if flag.SubCode != "" {
		log.Debug("Safe mode change rejected", "sub_code", flag.SubCode)
		return false, nil
	}
	return *flag.Enabled == enabled, nil
}

func decodeSafeMode(raw []byte) (*safeModeFlag, error) {
	var flag safeModeFlag
	if err := json.Unmarshal(raw, &flag); err != nil {
		return nil, &remote.MalformedResponseError{Kind: "safe mode", Raw: raw, Err: err}
	}
	if flag.Enabled == nil && flag.SubCode == "" {
		return nil, &remote.MalformedResponseError{Kind: "safe mode", Missing: []string{"enabled"}, Raw: raw}
	}
	if flag.Enabled == nil {
		f := false
		flag.Enabled = &f
	}
	return &flag, nil
}
