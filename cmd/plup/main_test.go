package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/plup/internal/install"
	"github.com/rubiojr/plup/internal/jobs"
	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
)

const helloJSON = `{"key":"com.example.hello","name":"Hello","version":"1.0.0","enabled":true,"userInstalled":true,
	"description":"Says hello","modules":[{"key":"macro","name":"Macro","enabled":true},{"key":"job","name":"Job","enabled":false}]}`

// runApp runs plup against baseURL with an isolated home and config file and
// returns what the command printed.
func runApp(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".data"))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	argv := []string{"plup", "--config", filepath.Join(home, "config.toml")}
	if baseURL != "" {
		argv = append(argv, "--base-url", baseURL)
	}
	err := app.Run(context.Background(), append(argv, args...))
	return out.String(), err
}

func pluginServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"connectivity", fmt.Errorf("listing: %w", &remote.ConnectivityError{URL: "http://x", Err: errors.New("refused")}), "check your base-url"},
		{"authentication", &remote.AuthenticationError{Reason: "no token"}, "check your credentials"},
		{"malformed", &remote.MalformedResponseError{Kind: "plugin"}, "check your credentials"},
		{"not found", &remote.NotFoundError{Resource: "plugin x"}, "Not found: plugin x"},
		{"timeout", &install.PollTimeoutError{Attempts: 3}, "did not finish in time"},
		{"ambiguous", &jobs.AmbiguousJobError{ID: "a"}, "--group or --idx"},
		{"job not found", jobs.ErrJobNotFound, "Job could not be found"},
		{"cancelled", context.Canceled, "Interrupted"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, errorMessage(tt.err), tt.want)
		})
	}
}

func TestListJSON(t *testing.T) {
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/plugins/1.0/", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "admin", pass)
		io.WriteString(w, `{"plugins":[`+helloJSON+`,
			{"key":"system","name":"System","version":"9","enabled":true,"userInstalled":false,"description":""}]}`)
	})

	out, err := runApp(t, server.URL, "--output", "json", "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "com.example.hello"`)
	assert.NotContains(t, out, `"system"`)

	out, err = runApp(t, server.URL, "--output", "json", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "system"`)
}

func TestListTable(t *testing.T) {
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"plugins":[`+helloJSON+`]}`)
	})

	out, err := runApp(t, server.URL, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Plugin Key")
	assert.Contains(t, out, "com.example.hello")
}

func TestInfoYAML(t *testing.T) {
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/plugins/1.0/com.example.hello-key", r.URL.Path)
		io.WriteString(w, helloJSON)
	})

	out, err := runApp(t, server.URL, "--output", "yaml", "info", "--show-modules", "com.example.hello")
	require.NoError(t, err)
	assert.Contains(t, out, "key: com.example.hello")
	assert.Contains(t, out, "userInstalled: true")
	assert.Contains(t, out, "modules:")
}

func TestUnknownOutputFormat(t *testing.T) {
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"plugins":[]}`)
	})

	_, err := runApp(t, server.URL, "--output", "xml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestUninstallNeedsNoContent(t *testing.T) {
	status := http.StatusOK
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(status)
	})

	_, err := runApp(t, server.URL, "uninstall", "com.example.hello")
	assert.ErrorIs(t, err, ErrUninstallFailed)

	status = http.StatusNoContent
	_, err = runApp(t, server.URL, "uninstall", "com.example.hello")
	assert.NoError(t, err)
}

func TestConnectivityError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := runApp(t, url, "list")
	require.Error(t, err)
	assert.Contains(t, errorMessage(err), "check your base-url")
}

func TestSafeModeStatus(t *testing.T) {
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/plugins/1.0/safe-mode", r.URL.Path)
		io.WriteString(w, `{"enabled":true,"links":{}}`)
	})

	out, err := runApp(t, server.URL, "safe-mode", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Safe mode is currently")
	assert.Contains(t, out, "enabled")
}

func TestLicenseTimebomb(t *testing.T) {
	var gotBody string
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/rest/plugins/1.0/com.example.hello-key/license", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		io.WriteString(w, `{"pluginKey":"com.example.hello","valid":true,"licenseType":"DEVELOPER"}`)
	})

	out, err := runApp(t, server.URL, "license", "timebomb", "--timebomb", "TenSeconds", "com.example.hello")
	require.NoError(t, err)
	assert.Contains(t, gotBody, "rawLicense")
	assert.Contains(t, out, "DEVELOPER")
}

// writePluginJar builds a minimal plugin jar carrying a descriptor.
func writePluginJar(t *testing.T, dir, key, version string) string {
	t.Helper()
	path := filepath.Join(dir, "hello-"+version+".jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	io.WriteString(w, "Manifest-Version: 1.0\n")
	w, err = zw.Create("atlassian-plugin.xml")
	require.NoError(t, err)
	fmt.Fprintf(w, `<atlassian-plugin key="%s" name="Hello"><plugin-info><version>%s</version></plugin-info></atlassian-plugin>`, key, version)
	require.NoError(t, zw.Close())
	return path
}

// newInstallServer serves the self-hosted install protocol for a plugin whose
// installed version is installed and counts the uploads.
func newInstallServer(t *testing.T, installed string, uploads *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/plugins/1.0/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set(remote.TokenHeader, "tok")
		case http.MethodPost:
			uploads.Add(1)
			assert.Equal(t, "tok", r.URL.Query().Get("token"))
			io.WriteString(w, `<textarea>{"type":"install","status":{"amountDownloaded":50},"links":{"self":"/task/1"}}</textarea>`)
		}
	})
	mux.HandleFunc("/rest/plugins/1.0/com.example.hello-key", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Replace(helloJSON, `"1.0.0"`, `"`+installed+`"`, 1))
	})
	mux.HandleFunc("/task/1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, helloJSON)
	})
	return pluginServer(t, mux.ServeHTTP)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestInstallSelfHosted(t *testing.T) {
	var uploads atomic.Int32
	server := newInstallServer(t, "0.9.0", &uploads)
	logs := captureLog(t)

	jar := writePluginJar(t, t.TempDir(), "com.example.hello", "1.0.0")
	_, err := runApp(t, server.URL, "install", "--file", jar, "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, int32(1), uploads.Load())
	assert.NotContains(t, logs.String(), "lower version")
}

func TestInstallDowngradeWarnsAndUploads(t *testing.T) {
	var uploads atomic.Int32
	server := newInstallServer(t, "2.0.0", &uploads)
	logs := captureLog(t)

	jar := writePluginJar(t, t.TempDir(), "com.example.hello", "1.9.0")
	_, err := runApp(t, server.URL, "install", "--file", jar, "--timeout", "5s")
	require.NoError(t, err)
	assert.Equal(t, int32(1), uploads.Load())
	assert.Contains(t, logs.String(), "lower version (1.9.0) than already installed (2.0.0)")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestRenderAmbiguousJobsShowsFullListIndexes(t *testing.T) {
	list := []jobs.Job{
		{Name: "Alpha", Group: "g1", ID: "cleanup.one"},
		{Name: "Beta", Group: "g2", ID: "other"},
		{Name: "Gamma", Group: "g3", ID: "cleanup.two"},
	}
	_, err := jobs.Select(list, jobs.Selector{ID: "cleanup"}, nil)
	var ambiguous *jobs.AmbiguousJobError
	require.ErrorAs(t, err, &ambiguous)

	var out bytes.Buffer
	renderJobs(&out, ambiguous.Candidates, ambiguous.Indexes, false, false)
	assert.Regexp(t, `│ +2 │ Gamma +│`, out.String())
	assert.NotRegexp(t, `│ +1 │ Gamma`, out.String())

	job, err := jobs.Select(list, jobs.Selector{Index: &ambiguous.Indexes[1]}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cleanup.two", job.ID)
}

func TestInstallCloudNeedsPluginURI(t *testing.T) {
	_, err := runApp(t, "http://127.0.0.1:1", "--cloud", "install")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--plugin-uri")
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Accept: application/json", "X-Atlassian-Token:no-check"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "no-check", h.Get("X-Atlassian-Token"))

	_, err = parseHeaders([]string{"no colon"})
	assert.Error(t, err)
}

func TestAPIRequest(t *testing.T) {
	ep, err := remote.NewEndpoint("http://wiki.local:8090/confluence", "admin", "admin", 0)
	require.NoError(t, err)

	req, err := apiRequest(ep, "post", "/rest/api/content?limit=5", `{"a":1}`, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://wiki.local:8090/confluence/rest/api/content?limit=5", req.URL.String())
	assert.NotNil(t, req.Body)

	req, err = apiRequest(ep, "GET", "rest/api/space", "", nil)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
	assert.Equal(t, "/confluence/rest/api/space", req.URL.Path)
}

func TestAPICommand(t *testing.T) {
	server := pluginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(data))
		io.WriteString(w, "pong")
	})

	out, err := runApp(t, server.URL, "api", "-X", "PUT", "-H", "X-Test: yes", "/ping", "payload")
	require.NoError(t, err)
	assert.Equal(t, "pong\n", out)
}

func TestConfirm(t *testing.T) {
	var prompt bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &prompt, "Sure?"))
	assert.True(t, confirm(strings.NewReader("Y"), &prompt, "Sure?"))
	assert.False(t, confirm(strings.NewReader("\n"), &prompt, "Sure?"))
	assert.False(t, confirm(strings.NewReader("yes please\n"), &prompt, "Sure?"))
	assert.Contains(t, prompt.String(), "Sure? (y/N)")
}

func TestToYAMLKeepsJSONOrder(t *testing.T) {
	v := struct {
		Zeta   string `json:"zeta"`
		Alpha  int    `json:"alpha"`
		Middle string `json:"middle"`
	}{"z", 1, "m"}

	out, err := toYAML(v)
	require.NoError(t, err)
	assert.Equal(t, "zeta: z\nalpha: 1\nmiddle: m\n", string(out))
}

func TestConfigShowMasksPassword(t *testing.T) {
	t.Setenv("PLUP_PASSWORD", "hunter2")
	out, err := runApp(t, "http://jira.local:2990/jira", "--output", "json", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "http://jira.local:2990/jira")
	assert.NotContains(t, out, "hunter2")
}

func TestWatchArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.jar")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchArtifact(ctx, path, 20*time.Millisecond, func() error {
			changes <- struct{}{}
			return nil
		})
	}()

	// an unrelated file must not trigger a reinstall
	require.Eventually(t, func() bool {
		os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644)
		os.WriteFile(path, []byte("v2"), 0644)
		select {
		case <-changes:
			return true
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestJobPickerFilterAndSelect(t *testing.T) {
	list := []jobs.Job{
		{Name: "Mail Queue Flush", Group: "DEFAULT", ID: "mailQueueFlushJob"},
		{Name: "Index Queue Flusher", Group: "DEFAULT", ID: "indexQueueFlusher"},
		{Name: "Clean Temp Directory", Group: "cleanup", ID: "cleanTempDirectoryJob"},
	}
	m := newJobPickerModel(list)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	for _, r := range "temp" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	require.Equal(t, []int{2}, m.filtered)
	assert.Contains(t, m.View(), "Clean Temp Directory")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.Equal(t, 2, m.chosen)
}

func TestJobPickerCancel(t *testing.T) {
	m := newJobPickerModel([]jobs.Job{{Name: "A", ID: "a"}})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, -1, m.chosen)
	assert.Equal(t, 0, m.cursor)
}
