// Package remote holds the connection to the remote product: the target
// endpoint, the authenticated HTTP transport, anti-forgery token retrieval and
// the error taxonomy shared by every command.
package remote

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const DefaultBaseURL = "http://localhost:8090"

// Endpoint is the target instance of one invocation. It is built once and
// never mutated; derived URLs are always fresh copies.
type Endpoint struct {
	base     url.URL
	user     string
	password string
}

// NewEndpoint parses baseURL and applies the credential pair. A port > 0
// overrides whatever port baseURL carries.
func NewEndpoint(baseURL, user, password string, port int) (Endpoint, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("invalid base url %q: missing host", baseURL)
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n < 1 || n > 65535 {
			return Endpoint{}, fmt.Errorf("invalid base url %q: bad port", baseURL)
		}
	}

	// credentials embedded in the url are used unless explicitly given
	if u.User != nil {
		if user == "" {
			user = u.User.Username()
		}
		if pw, ok := u.User.Password(); ok && password == "" {
			password = pw
		}
	}

	if port > 0 {
		if port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid port %d", port)
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}

	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	return Endpoint{base: *u, user: user, password: password}, nil
}

func (e Endpoint) User() string     { return e.user }
func (e Endpoint) Password() string { return e.password }

// URL joins p below the base path of the instance (the context path, e.g.
// /confluence) and attaches query.
func (e Endpoint) URL(p string, query url.Values) *url.URL {
	u := e.base
	u.Path = joinPath(e.base.Path, p)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

// AbsoluteURL replaces the whole path of the instance with ref. The remote
// plugin manager hands out self links that already contain the context path.
// A query string in ref is preserved. Links to another host are rejected.
func (e Endpoint) AbsoluteURL(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid link %q: %w", ref, err)
	}
	u := e.base
	if r.Host != "" && !strings.EqualFold(r.Host, e.base.Host) {
		return nil, fmt.Errorf("link %q points outside of %s", ref, e.base.Host)
	}
	if r.Scheme != "" {
		u.Scheme = r.Scheme
	}
	u.Path = r.Path
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	u.RawQuery = r.RawQuery
	return &u, nil
}

// Redacted returns the base url without credentials, fit for display.
func (e Endpoint) Redacted() string {
	u := e.base
	return u.String()
}

func (e Endpoint) String() string {
	return e.Redacted()
}

func joinPath(base, p string) string {
	if p == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	trailing := strings.HasSuffix(p, "/")
	joined := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(p, "/")
	if trailing && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}
