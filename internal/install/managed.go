package install

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rubiojr/plup/internal/remote"
	"github.com/rubiojr/plup/internal/upm"
)

const (
	RemoteInstallContentType = "application/vnd.atl.plugins.remote.install+json"
	DownloadingContentType   = "application/vnd.atl.plugins.install.downloading+json"
)

type managed struct {
	client    *remote.Client
	pluginURI string
}

func (m *managed) Submit(ctx context.Context, token string) (*Step, error) {
	body, err := remote.JSONBody(map[string]string{"pluginUri": m.pluginURI})
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Send(ctx, remote.Request{
		Method:      http.MethodPost,
		URL:         m.client.Endpoint().URL(remote.PluginRegistryPath, url.Values{"token": {token}}),
		ContentType: RemoteInstallContentType,
		Body:        body,
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
			Message:     strings.TrimSpace(string(resp.Body)),
		}
	}

	task, err := decodeTask(resp.Body)
	if err != nil {
		return nil, err
	}
	if task.Links.Self == "" {
		return nil, &remote.MalformedResponseError{Kind: "install status", Missing: []string{"links.self"}, Raw: resp.Body}
	}
	return &Step{Progress: task.progress(), Raw: resp.Body, self: task.Links.Self}, nil
}

// Poll follows redirects: being sent elsewhere means the task finished and
// the final document is the installed plugin.
func (m *managed) Poll(ctx context.Context, prev *Step) (*Step, error) {
	u, err := m.client.Endpoint().AbsoluteURL(prev.self)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Send(ctx, remote.Request{
		Method:      http.MethodGet,
		URL:         u,
		ContentType: DownloadingContentType,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.CheckAuth(); err != nil {
		return nil, err
	}

	if resp.Redirected {
		p, err := upm.DecodePlugin(resp.Body)
		if err != nil {
			return nil, err
		}
		return &Step{Progress: 100, Done: true, Plugin: p, Raw: resp.Body}, nil
	}

	task, err := decodeTask(resp.Body)
	if err != nil {
		return nil, err
	}
	if task.Status.Done && task.Status.SubCode != "" {
		contentType := task.Status.ContentType
		if contentType == "" {
			contentType = resp.ContentType
		}
		return nil, &remote.UploadFailedError{
			StatusCode:  resp.StatusCode,
			SubCode:     task.Status.SubCode,
			ContentType: contentType,
			Message:     task.message(),
		}
	}

	next := &Step{Raw: resp.Body, self: prev.self}
	if task.running() {
		next.Progress = task.progress()
	}
	return next, nil
}
