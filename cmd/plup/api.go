package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/remote"
)

var apiCmd = &cli.Command{
	Name:      "api",
	Usage:     "Send an authenticated request to the instance and print the response body",
	ArgsUsage: "<path> [body]",
	Action:    apiAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "method",
			Aliases: []string{"X"},
			Usage:   "HTTP method",
			Value:   http.MethodGet,
		},
		&cli.StringSliceFlag{
			Name:    "header",
			Aliases: []string{"H"},
			Usage:   "Additional header, e.g. -H 'Accept: application/json'",
		},
	},
}

// parseHeaders reads "Key: Value" pairs.
func parseHeaders(raw []string) (http.Header, error) {
	h := http.Header{}
	for _, line := range raw {
		k, v, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", line)
		}
		h.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return h, nil
}

// apiRequest builds the request for a path relative to the instance. The
// query string of path is kept.
func apiRequest(ep remote.Endpoint, method, path, body string, header http.Header) (remote.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return remote.Request{}, fmt.Errorf("invalid path %q: %w", path, err)
	}
	req := remote.Request{
		Method: strings.ToUpper(method),
		URL:    ep.URL(ref.Path, ref.Query()),
		Header: header,
	}
	if body != "" {
		req.Body = strings.NewReader(body)
	}
	return req, nil
}

func apiAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().Get(0)
	if path == "" {
		return errors.New("missing path, e.g. plup api /rest/api/space")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	header, err := parseHeaders(cmd.StringSlice("header"))
	if err != nil {
		return err
	}
	req, err := apiRequest(s.remote.Endpoint(), cmd.String("method"), path, cmd.Args().Get(1), header)
	if err != nil {
		return err
	}

	resp, err := s.remote.Send(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), string(resp.Body))

	if resp.StatusCode >= 400 {
		return &remote.StatusError{Method: req.Method, URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}
	return nil
}
