// Package upm talks to the plugin manager REST resource of the remote
// product: plugins and their modules, safe mode, licenses and access tokens.
package upm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
)

const (
	PluginContentType   = "application/vnd.atl.plugins.plugin+json"
	SafeModeContentType = "application/vnd.atl.plugins.safe.mode.flag+json"
	LicenseContentType  = "application/vnd.atl.plugins+json"
)

type Client struct {
	remote *remote.Client
}

func NewClient(rc *remote.Client) *Client {
	return &Client{remote: rc}
}

// PluginPath is the resource path of the plugin identified by key.
func PluginPath(key string) string {
	return remote.PluginRegistryPath + key + "-key"
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body any) (*remote.Response, error) {
	req := remote.Request{
		Method:      method,
		URL:         c.remote.Endpoint().URL(path, query),
		ContentType: contentType,
	}
	if body != nil {
		r, err := remote.JSONBody(body)
		if err != nil {
			return nil, err
		}
		req.Body = r
	}

	resp, err := c.remote.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.CheckAuth(); err != nil {
		return nil, err
	}
	return resp, nil
}

// expect turns a 404 into *remote.NotFoundError and any other non 2xx answer
// into *remote.StatusError.
func expect(resp *remote.Response, method, path, resource string) error {
	if resp.StatusCode == http.StatusNotFound {
		return &remote.NotFoundError{Resource: resource}
	}
	if !resp.OK() {
		return &remote.StatusError{
			Method:     method,
			URL:        path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(resp.Body)),
		}
	}
	return nil
}

// List returns the installed plugins. With userInstalledOnly set, system
// plugins bundled with the product are filtered out.
func (c *Client) List(ctx context.Context, userInstalledOnly bool) ([]Plugin, error) {
	resp, err := c.send(ctx, http.MethodGet, remote.PluginRegistryPath, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodGet, remote.PluginRegistryPath, "plugin registry"); err != nil {
		return nil, err
	}

	var listing struct {
		Plugins []json.RawMessage `json:"plugins"`
	}
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil, &remote.MalformedResponseError{Kind: "plugin list", Raw: resp.Body, Err: err}
	}

	plugins := make([]Plugin, 0, len(listing.Plugins))
	for _, raw := range listing.Plugins {
		p, err := DecodePlugin(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode plugin list: %w", err)
		}
		if userInstalledOnly && !p.UserInstalled {
			continue
		}
		plugins = append(plugins, *p)
	}
	log.Debug("Listed plugins", "count", len(plugins), "user_installed_only", userInstalledOnly)
	return plugins, nil
}

// Get fetches a single plugin. A plugin that is not installed surfaces as
// *remote.NotFoundError or, on products answering with an error document,
// as *remote.MalformedResponseError.
func (c *Client) Get(ctx context.Context, key string) (*Plugin, error) {
	path := PluginPath(key)
	resp, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodGet, path, "plugin "+key); err != nil {
		return nil, err
	}
	return DecodePlugin(resp.Body)
}

// Installed reports whether key is present on the instance.
func (c *Client) Installed(ctx context.Context, key string) (*Plugin, bool, error) {
	p, err := c.Get(ctx, key)
	switch {
	case err == nil:
		return p, true, nil
	case remote.IsNotFound(err), remote.IsMalformed(err):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// SetEnabled enables or disables a plugin and returns its refreshed state.
func (c *Client) SetEnabled(ctx context.Context, key string, enabled bool) (*Plugin, error) {
	path := PluginPath(key)
	body := map[string]bool{"enabled": enabled}
	resp, err := c.send(ctx, http.MethodPut, path, nil, PluginContentType, body)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodPut, path, "plugin "+key); err != nil {
		return nil, err
	}
	return DecodePlugin(resp.Body)
}

// Uninstall removes a plugin. Only a 204 answer counts as success; every
// other status is reported as false without an error.
func (c *Client) Uninstall(ctx context.Context, key string) (bool, error) {
	resp, err := c.send(ctx, http.MethodDelete, PluginPath(key), nil, "", nil)
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusNoContent {
		log.Debug("Uninstall rejected", "key", key, "status", resp.StatusCode)
		return false, nil
	}
	return true, nil
}
