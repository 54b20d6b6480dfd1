package marketplace

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/plup/cache"
	"github.com/rubiojr/plup/internal/remote"
)

func TestSplitNameAndVersion(t *testing.T) {
	tests := []struct {
		in, name, version string
	}{
		{"com.example.hello", "com.example.hello", Latest},
		{"com.example.hello==", "com.example.hello", Latest},
		{"com.example.hello==1.2.3", "com.example.hello", "1.2.3"},
		{" 1211542 == 2.0 ", "1211542", "2.0"},
	}
	for _, tt := range tests {
		name, version := SplitNameAndVersion(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.version, version, tt.in)
	}
}

type fakeMarketplace struct {
	server   *httptest.Server
	requests map[string]int
}

func newFakeMarketplace(t *testing.T) *fakeMarketplace {
	t.Helper()
	fm := &fakeMarketplace{requests: map[string]int{}}
	mux := http.NewServeMux()

	mux.HandleFunc("/rest/2/addons/com.example.hello/versions/latest", func(w http.ResponseWriter, r *http.Request) {
		fm.requests[r.URL.Path]++
		assert.Equal(t, "server", r.URL.Query().Get("hosting"))
		// artifact links point at the public origin and must be re-based
		io.WriteString(w, `{"buildNumber":120,"name":"1.2.0","status":"public","paymentModel":"free",
			"_links":{"artifact":{"href":"https://marketplace.atlassian.com/rest/2/assets/abc"},"alternate":{"href":"/apps/1"}}}`)
	})
	mux.HandleFunc("/rest/2/addons/com.example.hello/versions/name/1.0.0", func(w http.ResponseWriter, r *http.Request) {
		fm.requests[r.URL.Path]++
		io.WriteString(w, `{"name":"1.0.0","_links":{"artifact":{"href":"/rest/2/assets/old"}}}`)
	})
	mux.HandleFunc("/rest/2/assets/abc", func(w http.ResponseWriter, r *http.Request) {
		fm.requests[r.URL.Path]++
		io.WriteString(w, `{"_links":{"binary":{"href":"`+fm.server.URL+`/files/hello-1.2.0.jar"}},"fileInfo":{"logicalFileName":"hello-1.2.0.jar","size":7}}`)
	})
	mux.HandleFunc("/rest/2/assets/old", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"_links":{"binary":{"href":"`+fm.server.URL+`/download/old"}},"fileInfo":{"size":"3"}}`)
	})
	mux.HandleFunc("/download/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/hello-1.0.0.jar", http.StatusFound)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		fm.requests[r.URL.Path]++
		io.WriteString(w, "jarfile")
	})
	mux.HandleFunc("/apps/1211542/WILDCARD/version-history", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body class="app-page"><div class="plugin-versions">
			<div class="version-row"><span class="version">Cloud</span><a class="download-link" href="/files/cloud.json">dl</a></div>
			<div class="version-row"><span class="version">2.0.0</span><a class="download-link" href="/files/hello-2.0.0.jar">dl</a></div>
			<div class="version-row"><span class="version">1.9.0</span><a class="download-link" href="/files/hello-1.9.0.jar">dl</a></div>
		</div></body></html>`)
	})
	mux.HandleFunc("/apps/404/WILDCARD/version-history", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body class="error-page">not found</body></html>`)
	})
	mux.HandleFunc("/rest/2/addons/com.example.missing/versions/latest", http.NotFound)

	fm.server = httptest.NewServer(mux)
	t.Cleanup(fm.server.Close)
	return fm
}

func (fm *fakeMarketplace) client(t *testing.T, opts ...Option) *Client {
	opts = append([]Option{
		WithRESTURL(fm.server.URL + "/rest/2/"),
		WithSiteURL(fm.server.URL),
		WithDownloadDir(t.TempDir()),
	}, opts...)
	return NewClient(opts...)
}

func TestBinaryURLByKey(t *testing.T) {
	fm := newFakeMarketplace(t)
	c := fm.client(t)

	link, err := c.BinaryURLByKey(context.Background(), "com.example.hello", Latest)
	require.NoError(t, err)
	assert.Equal(t, fm.server.URL+"/files/hello-1.2.0.jar", link)

	_, err = c.BinaryURLByKey(context.Background(), "com.example.missing", Latest)
	assert.True(t, remote.IsNotFound(err))
}

func TestDownloadByKey(t *testing.T) {
	fm := newFakeMarketplace(t)
	c := fm.client(t)

	p, err := c.DownloadByKey(context.Background(), "com.example.hello", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "hello-1.0.0.jar", filepath.Base(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "jarfile", string(data))
}

func TestDownloadByKeyCached(t *testing.T) {
	fm := newFakeMarketplace(t)
	ch, err := cache.NewCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	c := fm.client(t, WithCache(ch))

	for range 2 {
		p, err := c.DownloadByKey(context.Background(), "com.example.hello", Latest)
		require.NoError(t, err)
		assert.Equal(t, "hello-1.2.0.jar", filepath.Base(p))
	}
	assert.Equal(t, 1, fm.requests["/rest/2/addons/com.example.hello/versions/latest"])
	assert.Equal(t, 1, fm.requests["/rest/2/assets/abc"])
	assert.Equal(t, 2, fm.requests["/files/hello-1.2.0.jar"])
}

func TestDownloadByKeyEvictsStaleLink(t *testing.T) {
	fm := newFakeMarketplace(t)
	ch, err := cache.NewCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	stale := fm.server.URL + "/files-gone/hello-1.1.0.jar"
	require.NoError(t, ch.Namespace("marketplace").Put([]byte("key:com.example.hello=="+Latest), []byte(stale)))
	c := fm.client(t, WithCache(ch))

	p, err := c.DownloadByKey(context.Background(), "com.example.hello", Latest)
	require.NoError(t, err)
	assert.Equal(t, "hello-1.2.0.jar", filepath.Base(p))
	assert.Equal(t, 1, fm.requests["/rest/2/addons/com.example.hello/versions/latest"])

	cached, err := ch.Namespace("marketplace").Get([]byte("key:com.example.hello==" + Latest))
	require.NoError(t, err)
	assert.Equal(t, fm.server.URL+"/files/hello-1.2.0.jar", string(cached))
}

func TestBinaryURLByID(t *testing.T) {
	fm := newFakeMarketplace(t)
	c := fm.client(t)

	link, err := c.BinaryURLByID(context.Background(), "1211542", Latest)
	require.NoError(t, err)
	assert.Equal(t, fm.server.URL+"/files/hello-2.0.0.jar", link)

	link, err = c.BinaryURLByID(context.Background(), "1211542", "1.9.0")
	require.NoError(t, err)
	assert.Equal(t, fm.server.URL+"/files/hello-1.9.0.jar", link)

	_, err = c.BinaryURLByID(context.Background(), "1211542", "0.1")
	assert.True(t, remote.IsNotFound(err))

	_, err = c.BinaryURLByID(context.Background(), "404", Latest)
	assert.True(t, remote.IsNotFound(err))
}

func TestDownloadByID(t *testing.T) {
	fm := newFakeMarketplace(t)
	c := fm.client(t)

	p, err := c.DownloadByID(context.Background(), "1211542", Latest)
	require.NoError(t, err)
	assert.Equal(t, "hello-2.0.0.jar", filepath.Base(p))
}

func TestDownloadConnectivity(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	c := NewClient(WithRESTURL(base), WithDownloadDir(t.TempDir()))
	_, err := c.BinaryURLByKey(context.Background(), "k", Latest)
	assert.True(t, remote.IsConnectivity(err))
}
