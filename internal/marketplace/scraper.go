package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rubiojr/plup/internal/remote"
)

// cloudVersion labels the rows of cloud builds in the version history.
const cloudVersion = "Cloud"

// BinaryURLByID scrapes the version history page of the app with marketplace
// id. Latest picks the first row that is not a cloud build.
func (c *Client) BinaryURLByID(ctx context.Context, id, version string) (string, error) {
	site, err := url.Parse(c.siteURL)
	if err != nil {
		return "", fmt.Errorf("invalid marketplace url: %w", err)
	}
	page := site.JoinPath("apps", id, "WILDCARD", "version-history")

	resp, err := c.get(ctx, page.String())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &remote.NotFoundError{Resource: "marketplace app " + id}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &remote.MalformedResponseError{Kind: "marketplace version history", Err: err}
	}
	if doc.Find("body").HasClass("error-page") {
		return "", &remote.NotFoundError{Resource: "marketplace app " + id}
	}

	latest := version == "" || version == Latest
	var selected *goquery.Selection
	doc.Find(".plugin-versions .version-row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		name := strings.TrimSpace(row.Find("span.version").First().Text())
		match := name == version
		if latest {
			match = name != cloudVersion
		}
		if match {
			selected = row
			return false
		}
		return true
	})
	if selected == nil {
		return "", &remote.NotFoundError{Resource: fmt.Sprintf("marketplace app %s version %s", id, version)}
	}

	href, ok := selected.Find(".download-link").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", &remote.MalformedResponseError{Kind: "marketplace version history", Missing: []string{".download-link"}}
	}
	link, err := page.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid download link %q: %w", href, err)
	}
	return link.String(), nil
}
