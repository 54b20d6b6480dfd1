// Package jobs manages the scheduled jobs of a Confluence instance. The
// product offers no REST resource for them, so the admin HTML page is
// scraped and actions are triggered through the same links the page uses.
package jobs

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
)

const (
	ListPath    = "/admin/scheduledjobs/viewscheduledjobs.action"
	RunPath     = "/admin/scheduledjobs/runJob.action"
	DisablePath = "/admin/scheduledjobs/disableJob.action"
	EnablePath  = "/admin/scheduledjobs/enableJob.action"

	// DefaultGroup is the group of the jobs the product registers itself.
	DefaultGroup = "DEFAULT"
)

// Action is the toggle a job row offers.
type Action string

const (
	ActionNone    Action = ""
	ActionEnable  Action = "enable"
	ActionDisable Action = "disable"
)

// Job is one row of the scheduled jobs table.
type Job struct {
	Name           string `json:"name" yaml:"name"`
	Group          string `json:"group" yaml:"group"`
	ID             string `json:"id" yaml:"id"`
	Status         string `json:"status" yaml:"status"`
	LastExecution  string `json:"lastExecution" yaml:"last_execution"`
	NextExecution  string `json:"nextExecution" yaml:"next_execution"`
	AvgDuration    string `json:"avgDuration" yaml:"avg_duration"`
	HasHistory     bool   `json:"hasHistory" yaml:"has_history"`
	IsRunnable     bool   `json:"isRunnable" yaml:"is_runnable"`
	IsEditable     bool   `json:"isEditable" yaml:"is_editable"`
	Action         Action `json:"action,omitempty" yaml:"action,omitempty"`
	IsCron         bool   `json:"isCron" yaml:"is_cron"`
	CronExpression string `json:"cronExpression,omitempty" yaml:"cron_expression,omitempty"`
	RepeatInterval string `json:"repeatInterval,omitempty" yaml:"repeat_interval,omitempty"`
}

// Scheduled reports whether the job is currently active.
func (j Job) Scheduled() bool {
	return j.Status == "Scheduled"
}

type Scraper struct {
	client *remote.Client
}

func NewScraper(rc *remote.Client) *Scraper {
	return &Scraper{client: rc}
}

// PageURL is the address of the jobs admin page, fit for a browser.
func (s *Scraper) PageURL() *url.URL {
	return s.client.Endpoint().URL(ListPath, nil)
}

func (s *Scraper) page(ctx context.Context) (*goquery.Document, error) {
	resp, err := s.client.Send(ctx, remote.Request{Method: http.MethodGet, URL: s.PageURL()})
	if err != nil {
		return nil, err
	}
	if err := resp.CheckAuth(); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &remote.NotFoundError{Resource: "scheduled jobs page"}
	}
	if !resp.OK() {
		return nil, &remote.StatusError{Method: http.MethodGet, URL: ListPath, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &remote.MalformedResponseError{Kind: "scheduled jobs page", Raw: resp.Body, Err: err}
	}
	return doc, nil
}

// Token fetches the action token embedded in the jobs page.
func (s *Scraper) Token(ctx context.Context) (string, error) {
	doc, err := s.page(ctx)
	if err != nil {
		return "", err
	}
	return remote.MetaToken(doc)
}

// List scrapes every job and returns them with the page's action token.
func (s *Scraper) List(ctx context.Context) ([]Job, string, error) {
	doc, err := s.page(ctx)
	if err != nil {
		return nil, "", err
	}
	token, err := remote.MetaToken(doc)
	if err != nil {
		return nil, "", err
	}
	jobs, err := Parse(doc)
	if err != nil {
		return nil, "", err
	}
	log.Debug("Scraped scheduled jobs", "count", len(jobs))
	return jobs, token, nil
}

func (s *Scraper) Run(ctx context.Context, job Job, token string) (bool, error) {
	return s.act(ctx, RunPath, job, token)
}

func (s *Scraper) Enable(ctx context.Context, job Job, token string) (bool, error) {
	return s.act(ctx, EnablePath, job, token)
}

func (s *Scraper) Disable(ctx context.Context, job Job, token string) (bool, error) {
	return s.act(ctx, DisablePath, job, token)
}

// act triggers an action link. The page answers 200 on success and offers no
// structured error otherwise. An empty token is fetched first.
func (s *Scraper) act(ctx context.Context, path string, job Job, token string) (bool, error) {
	if token == "" {
		t, err := s.Token(ctx)
		if err != nil {
			return false, err
		}
		token = t
	}

	query := url.Values{
		"group":     {job.Group},
		"id":        {job.ID},
		"atl_token": {token},
	}
	resp, err := s.client.Send(ctx, remote.Request{
		Method: http.MethodGet,
		URL:    s.client.Endpoint().URL(path, query),
	})
	if err != nil {
		return false, err
	}
	if err := resp.CheckAuth(); err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		log.Debug("Job action rejected", "path", path, "job", job.ID, "status", resp.StatusCode)
		return false, nil
	}
	return true, nil
}

// String is the short form used in log lines.
func (j Job) String() string {
	return fmt.Sprintf("%s (%s)", j.Name, j.ID)
}
