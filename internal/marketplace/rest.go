package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rubiojr/plup/internal/remote"
)

type Link struct {
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// AddonVersion is a published version of an app.
type AddonVersion struct {
	BuildNumber  int    `json:"buildNumber"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	PaymentModel string `json:"paymentModel"`
	Links        struct {
		Artifact  Link `json:"artifact"`
		Alternate Link `json:"alternate"`
	} `json:"_links"`
}

// Asset is the binary attached to a version.
type Asset struct {
	Links    map[string]Link `json:"_links"`
	FileInfo struct {
		LogicalFileName string      `json:"logicalFileName"`
		Size            json.Number `json:"size"`
	} `json:"fileInfo"`
}

// Version looks up version (or Latest) of the app key.
func (c *Client) Version(ctx context.Context, key, version string) (*AddonVersion, error) {
	u, err := url.Parse(c.restURL)
	if err != nil {
		return nil, fmt.Errorf("invalid marketplace url: %w", err)
	}
	if version == "" || version == Latest {
		u = u.JoinPath("addons", key, "versions", Latest)
	} else {
		u = u.JoinPath("addons", key, "versions", "name", version)
	}
	u.RawQuery = url.Values{"hosting": {c.hosting}}.Encode()

	var v AddonVersion
	if err := c.getJSON(ctx, u.String(), fmt.Sprintf("app %s version %s", key, version), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Asset follows the artifact link of v. The link is always resolved against
// the marketplace REST origin.
func (c *Client) Asset(ctx context.Context, v *AddonVersion) (*Asset, error) {
	if v.Links.Artifact.Href == "" {
		return nil, &remote.MalformedResponseError{Kind: "marketplace version", Missing: []string{"_links.artifact"}}
	}
	u, err := url.Parse(v.Links.Artifact.Href)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact link: %w", err)
	}
	base, err := url.Parse(c.restURL)
	if err != nil {
		return nil, fmt.Errorf("invalid marketplace url: %w", err)
	}
	u.Scheme = base.Scheme
	u.Host = base.Host

	var a Asset
	if err := c.getJSON(ctx, u.String(), "artifact of version "+v.Name, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// BinaryURLByKey resolves the download link of app key at version.
func (c *Client) BinaryURLByKey(ctx context.Context, key, version string) (string, error) {
	v, err := c.Version(ctx, key, version)
	if err != nil {
		return "", err
	}
	a, err := c.Asset(ctx, v)
	if err != nil {
		return "", err
	}
	bin, ok := a.Links["binary"]
	if !ok || bin.Href == "" {
		return "", &remote.MalformedResponseError{Kind: "marketplace asset", Missing: []string{"_links.binary"}}
	}
	return bin.Href, nil
}

func (c *Client) getJSON(ctx context.Context, link, resource string, v any) error {
	resp, err := c.get(ctx, link)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return &remote.NotFoundError{Resource: "marketplace " + resource}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &remote.MalformedResponseError{Kind: "marketplace", Raw: body, Err: err}
	}
	return nil
}
