// Package marketplace resolves and downloads plugin binaries published on the
// Atlassian Marketplace, either by app key through the REST API or by
// marketplace id through the public version history page.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rubiojr/plup/cache"
	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/plupfs"
	"github.com/rubiojr/plup/internal/remote"
)

const (
	DefaultRESTURL = "https://marketplace.atlassian.com/rest/2"
	DefaultSiteURL = "https://marketplace.atlassian.com"
	UserAgent      = "plup-cli/1.0"

	// Latest selects the newest version of an app.
	Latest = "latest"
	// DefaultHosting restricts REST lookups to self-hosted builds.
	DefaultHosting = "server"
)

type Client struct {
	restURL     string
	siteURL     string
	hosting     string
	httpClient  *http.Client
	downloadDir string
	cache       cache.Cache
}

type Option func(*Client)

func WithRESTURL(u string) Option {
	return func(c *Client) { c.restURL = strings.TrimSuffix(u, "/") }
}

func WithSiteURL(u string) Option {
	return func(c *Client) { c.siteURL = strings.TrimSuffix(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithDownloadDir(dir string) Option {
	return func(c *Client) { c.downloadDir = dir }
}

// WithCache remembers resolved binary links in ch.
func WithCache(ch cache.Cache) Option {
	return func(c *Client) { c.cache = ch.Namespace("marketplace") }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		restURL: DefaultRESTURL,
		siteURL: DefaultSiteURL,
		hosting: DefaultHosting,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		downloadDir: plupfs.DownloadDir(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SplitNameAndVersion splits "name==version". A missing or empty version
// means Latest.
func SplitNameAndVersion(s string) (string, string) {
	name, version, found := strings.Cut(s, "==")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if !found || version == "" {
		return name, Latest
	}
	return name, version
}

// DownloadByKey downloads the binary of app key at version.
func (c *Client) DownloadByKey(ctx context.Context, key, version string) (string, error) {
	return c.download(ctx, "key:"+key+"=="+version, func() (string, error) {
		return c.BinaryURLByKey(ctx, key, version)
	})
}

// DownloadByID downloads the binary of the app with marketplace id at version.
func (c *Client) DownloadByID(ctx context.Context, id, version string) (string, error) {
	return c.download(ctx, "id:"+id+"=="+version, func() (string, error) {
		return c.BinaryURLByID(ctx, id, version)
	})
}

// download fetches the binary resolve points at. A cached link that is gone
// is evicted and resolved again.
func (c *Client) download(ctx context.Context, key string, resolve func() (string, error)) (string, error) {
	link, hit, err := c.cached(key, resolve)
	if err != nil {
		return "", err
	}
	p, err := c.Download(ctx, link)
	if err == nil || !hit || !remote.IsNotFound(err) {
		return p, err
	}

	log.Debug("Cached marketplace link is gone", "key", key, "url", link)
	if err := c.cache.Delete([]byte(key)); err != nil {
		log.Debug("Failed to evict marketplace lookup", "key", key, "error", err)
	}
	if link, _, err = c.cached(key, resolve); err != nil {
		return "", err
	}
	return c.Download(ctx, link)
}

// cached returns the link stored under key, or resolves and stores it. hit
// reports whether the link came from the cache.
func (c *Client) cached(key string, resolve func() (string, error)) (link string, hit bool, err error) {
	if c.cache != nil {
		if v, err := c.cache.Get([]byte(key)); err == nil && len(v) > 0 {
			log.Debug("Marketplace lookup cache hit", "key", key)
			return string(v), true, nil
		}
	}

	link, err = resolve()
	if err != nil {
		return "", false, err
	}

	if c.cache != nil {
		if err := c.cache.Put([]byte(key), []byte(link)); err != nil {
			log.Debug("Failed to cache marketplace lookup", "key", key, "error", err)
		}
	}
	return link, false, nil
}

// Download fetches link into the download directory, named after the last
// path segment of the final (post redirect) URL. An existing file with the
// same name is overwritten.
func (c *Client) Download(ctx context.Context, link string) (string, error) {
	resp, err := c.get(ctx, link)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &remote.NotFoundError{Resource: "download " + link}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error %d when fetching %s", resp.StatusCode, link)
	}

	name := path.Base(resp.Request.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "download.jar"
	}

	if err := os.MkdirAll(c.downloadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	target := filepath.Join(c.downloadDir, name)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}

	log.Debug("Downloaded app", "url", link, "path", target, "bytes", n)
	return target, nil
}

func (c *Client) get(ctx context.Context, link string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	log.Debug("Fetching from marketplace", "url", link)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, &remote.ConnectivityError{URL: link, Err: urlErr.Err}
		}
		return nil, &remote.ConnectivityError{URL: link, Err: err}
	}
	return resp, nil
}
