package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rubiojr/plup/internal/log"
)

const (
	UserAgent      = "plup-cli/1.0"
	DefaultTimeout = 2 * time.Minute

	// PluginRegistryPath is the root of the plugin manager REST resource tree.
	PluginRegistryPath = "/rest/plugins/1.0/"
)

// Client sends authenticated requests to one Endpoint. Cookies are kept for
// the lifetime of the client so HTML flows relying on a session work.
type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
	userAgent  string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func NewClient(ep Endpoint, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		endpoint: ep,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		userAgent: UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Request describes a single call. Body may be nil.
type Request struct {
	Method      string
	URL         *url.URL
	ContentType string
	Accept      string
	Header      http.Header
	Body        io.Reader
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
	// Redirected is set when the client followed at least one redirect.
	Redirected bool
	FinalURL   *url.URL
}

// JSONBody encodes v for use as a Request body.
func JSONBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(data), nil
}

// NewRequest builds an http.Request carrying the endpoint credentials.
func (c *Client) NewRequest(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.endpoint.User() != "" {
		req.SetBasicAuth(c.endpoint.User(), c.endpoint.Password())
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// Do executes req. Transport failures become *ConnectivityError unless the
// context was cancelled.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	log.Debug("Sending request", "method", req.Method, "url", req.URL.Redacted())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ConnectivityError{URL: c.endpoint.Redacted(), Err: err}
	}
	return resp, nil
}

// Send executes r and reads the whole body. Any HTTP status is returned as a
// Response; interpreting it is up to the caller.
func (c *Client) Send(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := c.NewRequest(ctx, method, r.URL, r.Body)
	if err != nil {
		return nil, err
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug("Received response", "method", method, "url", r.URL.Redacted(), "status", resp.StatusCode)

	out := &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    r.URL,
	}
	if resp.Request != nil {
		// http.Client sets Request.Response on requests it created to follow
		// a redirect.
		out.Redirected = resp.Request.Response != nil
		out.FinalURL = resp.Request.URL
	}
	return out, nil
}

// CheckAuth turns 401 and 403 answers into *AuthenticationError.
func (r *Response) CheckAuth() error {
	switch r.StatusCode {
	case http.StatusUnauthorized:
		return &AuthenticationError{Reason: "credentials rejected", StatusCode: r.StatusCode}
	case http.StatusForbidden:
		return &AuthenticationError{Reason: "access denied", StatusCode: r.StatusCode}
	}
	return nil
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsCancelled reports whether err stems from a cancelled or expired context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
