package install

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
)

// UploadField is the multipart field the plugin manager reads the binary from.
const UploadField = "plugin"

type selfHosted struct {
	client *remote.Client
	path   string
}

func (s *selfHosted) Submit(ctx context.Context, token string) (*Step, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(UploadField, filepath.Base(s.path))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to create upload form: %w", err)
	}

	log.Debug("Uploading artifact", "path", s.path, "bytes", body.Len())
	resp, err := s.client.Send(ctx, remote.Request{
		Method:      http.MethodPost,
		URL:         s.client.Endpoint().URL(remote.PluginRegistryPath, url.Values{"token": {token}}),
		ContentType: mw.FormDataContentType(),
		Body:        &body,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.CheckAuth(); err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &remote.UploadFailedError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.ContentType,
			Message:     strings.TrimSpace(string(stripTextarea(resp.Body))),
		}
	}

	return s.interpret(stripTextarea(resp.Body))
}

func (s *selfHosted) Poll(ctx context.Context, prev *Step) (*Step, error) {
	u, err := s.client.Endpoint().AbsoluteURL(prev.self)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Send(ctx, remote.Request{Method: http.MethodGet, URL: u})
	if err != nil {
		return nil, err
	}
	if err := resp.CheckAuth(); err != nil {
		return nil, err
	}
	return s.interpret(stripTextarea(resp.Body))
}

// interpret reads a running task or the terminal plugin document.
func (s *selfHosted) interpret(raw []byte) (*Step, error) {
	task, err := decodeTask(raw)
	if err != nil {
		return nil, err
	}
	if !task.running() {
		return terminalStep(raw), nil
	}
	if task.Links.Self == "" {
		return nil, &remote.MalformedResponseError{Kind: "install status", Missing: []string{"links.self"}, Raw: raw}
	}
	return &Step{Progress: task.progress(), Raw: raw, self: task.Links.Self}, nil
}
