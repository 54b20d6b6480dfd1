package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// TokenHeader carries the plugin manager action token on a HEAD probe.
	TokenHeader = "upm-token"
	// MetaTokenSelector locates the action token in server rendered admin pages.
	MetaTokenSelector = "meta#atlassian-token"
)

// Token fetches a fresh action token from the plugin manager. Tokens are
// short lived and never cached.
func (c *Client) Token(ctx context.Context) (string, error) {
	u := c.endpoint.URL(PluginRegistryPath, url.Values{"os_authType": {"basic"}})
	resp, err := c.Send(ctx, Request{Method: http.MethodHead, URL: u})
	if err != nil {
		return "", err
	}
	if err := resp.CheckAuth(); err != nil {
		return "", err
	}

	token := resp.Header.Get(TokenHeader)
	if token == "" {
		return "", &AuthenticationError{
			Reason:     "no " + TokenHeader + " header in response",
			StatusCode: resp.StatusCode,
		}
	}
	return token, nil
}

// MetaToken extracts the action token embedded in an HTML admin page.
func MetaToken(doc *goquery.Document) (string, error) {
	content, ok := doc.Find(MetaTokenSelector).First().Attr("content")
	if !ok || strings.TrimSpace(content) == "" {
		return "", &AuthenticationError{Reason: "no atlassian-token in page"}
	}
	return strings.TrimSpace(content), nil
}
