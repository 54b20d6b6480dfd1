package jobs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/plup/internal/remote"
)

type action struct {
	path  string
	query map[string]string
}

func newTestScraper(t *testing.T, status int) (*Scraper, *[]action) {
	t.Helper()
	page, err := os.ReadFile("testdata/scheduledjobs.html")
	require.NoError(t, err)

	var actions []action
	mux := http.NewServeMux()
	mux.HandleFunc("/confluence"+ListPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(page)
	})
	for _, p := range []string{RunPath, EnablePath, DisablePath} {
		mux.HandleFunc("/confluence"+p, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			actions = append(actions, action{path: p, query: map[string]string{
				"group":     q.Get("group"),
				"id":        q.Get("id"),
				"atl_token": q.Get("atl_token"),
			}})
			w.WriteHeader(status)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ep, err := remote.NewEndpoint(server.URL+"/confluence", "admin", "admin", 0)
	require.NoError(t, err)
	return NewScraper(remote.NewClient(ep)), &actions
}

func TestScraperList(t *testing.T) {
	s, _ := newTestScraper(t, http.StatusOK)

	jobs, token, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b7c5a3e1", token)
	assert.Len(t, jobs, 3)
}

func TestScraperActions(t *testing.T) {
	s, actions := newTestScraper(t, http.StatusOK)
	jobs, token, err := s.List(context.Background())
	require.NoError(t, err)

	ok, err := s.Disable(context.Background(), jobs[0], token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Enable(context.Background(), jobs[1], token)
	require.NoError(t, err)
	assert.True(t, ok)

	// an empty token is fetched from the page
	ok, err = s.Run(context.Background(), jobs[0], "")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, *actions, 3)
	assert.Equal(t, action{path: DisablePath, query: map[string]string{
		"group": "DEFAULT", "id": "cleanTempDirectoryJob", "atl_token": "b7c5a3e1",
	}}, (*actions)[0])
	assert.Equal(t, EnablePath, (*actions)[1].path)
	assert.Equal(t, "com.example.mail", (*actions)[1].query["group"])
	assert.Equal(t, RunPath, (*actions)[2].path)
	assert.Equal(t, "b7c5a3e1", (*actions)[2].query["atl_token"])
}

func TestScraperActionFailure(t *testing.T) {
	s, _ := newTestScraper(t, http.StatusInternalServerError)
	jobs, token, err := s.List(context.Background())
	require.NoError(t, err)

	ok, err := s.Run(context.Background(), jobs[0], token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScraperLoginPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><form id="login-form"></form></body></html>`)
	}))
	t.Cleanup(server.Close)
	ep, err := remote.NewEndpoint(server.URL, "admin", "wrong", 0)
	require.NoError(t, err)

	_, _, err = NewScraper(remote.NewClient(ep)).List(context.Background())
	assert.True(t, remote.IsAuthentication(err))
}

func TestPageURL(t *testing.T) {
	s, _ := newTestScraper(t, http.StatusOK)
	assert.Equal(t, "/confluence/admin/scheduledjobs/viewscheduledjobs.action", s.PageURL().Path)
}
