package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/plup/internal/jobs"
	"github.com/rubiojr/plup/internal/log"
)

// nextRunCount is how many upcoming fire times job info shows.
const nextRunCount = 5

var jobSelectFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "idx",
		Usage: "Index of the job as shown by job list",
	},
	&cli.StringFlag{
		Name:  "id",
		Usage: "Job id, or a part of it",
	},
	&cli.StringFlag{
		Name:  "group",
		Usage: "Job group, or a part of it, to narrow down --id matches",
	},
}

var jobCmd = &cli.Command{
	Name:  "job",
	Usage: "Manage and run scheduled jobs (Confluence only, needs an english user locale)",
	Commands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "List all scheduled jobs",
			Action: jobListAction,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "hide-default",
					Usage: "Hide the jobs of the " + jobs.DefaultGroup + " group",
				},
				&cli.BoolFlag{
					Name:  "all-infos",
					Usage: "Show execution times too",
				},
				webFlag("Open the scheduled jobs page in a browser afterwards"),
			},
		},
		{
			Name:   "info",
			Usage:  "Show everything known about a job",
			Action: jobInfoAction,
			Flags:  jobSelectFlags,
		},
		{
			Name:  "run",
			Usage: "Run a job now",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return jobAction(ctx, cmd, "run", (*jobs.Scraper).Run)
			},
			Flags: jobSelectFlags,
		},
		{
			Name:  "enable",
			Usage: "Enable a job",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return jobAction(ctx, cmd, "enable", (*jobs.Scraper).Enable)
			},
			Flags: jobSelectFlags,
		},
		{
			Name:  "disable",
			Usage: "Disable a job",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return jobAction(ctx, cmd, "disable", (*jobs.Scraper).Disable)
			},
			Flags: jobSelectFlags,
		},
	},
}

func listJobs(ctx context.Context, cmd *cli.Command) (*session, *jobs.Scraper, []jobs.Job, string, error) {
	s, err := newSession(cmd)
	if err != nil {
		return nil, nil, nil, "", err
	}
	scraper := jobs.NewScraper(s.remote)

	log.Info("Getting jobs... this can take some time")
	list, token, err := scraper.List(ctx)
	if err != nil {
		return nil, nil, nil, "", err
	}
	return s, scraper, list, token, nil
}

func selectorFrom(cmd *cli.Command) jobs.Selector {
	sel := jobs.Selector{ID: cmd.String("id"), Group: cmd.String("group")}
	if cmd.IsSet("idx") {
		idx := cmd.Int("idx")
		sel.Index = &idx
	}
	return sel
}

func selectJob(cmd *cli.Command, list []jobs.Job) (*jobs.Job, error) {
	job, err := jobs.Select(list, selectorFrom(cmd), jobPrompter())
	var ambiguous *jobs.AmbiguousJobError
	if errors.As(err, &ambiguous) {
		renderJobs(stdout(cmd), ambiguous.Candidates, ambiguous.Indexes, false, false)
	}
	return job, err
}

func jobListAction(ctx context.Context, cmd *cli.Command) error {
	s, scraper, list, _, err := listJobs(ctx, cmd)
	if err != nil {
		return err
	}

	w := stdout(cmd)
	format := outputFormat(s.settings)
	if format != formatTable {
		visible := list
		if cmd.Bool("hide-default") {
			visible = visible[:0:0]
			for _, j := range list {
				if j.Group != jobs.DefaultGroup {
					visible = append(visible, j)
				}
			}
		}
		if _, err := writeStructured(w, format, visible); err != nil {
			return err
		}
	} else {
		renderJobs(w, list, nil, cmd.Bool("hide-default"), cmd.Bool("all-infos"))
	}

	if cmd.Bool("web") {
		openWeb(s.remote.Endpoint(), scraper.PageURL().Path)
	}
	return nil
}

// renderJobs prints the job table. Rows are numbered with indexes, or with
// their position in list when indexes is nil, so the shown number is always
// what --idx expects. Hidden rows keep their index.
func renderJobs(w io.Writer, list []jobs.Job, indexes []int, hideDefault, allInfos bool) {
	t := newTable(w)
	header := table.Row{"Idx", "Name", "Group", "ID", "Status", "Runnable"}
	if allInfos {
		header = append(header, "Last execution", "Next execution", "Avg. duration")
	}
	t.AppendHeader(header)

	for i, j := range list {
		if hideDefault && j.Group == jobs.DefaultGroup {
			continue
		}
		status := okStyle.Render("scheduled")
		if !j.Scheduled() {
			status = errStyle.Render(orDash(j.Status))
		}
		idx := i
		if indexes != nil {
			idx = indexes[i]
		}
		row := table.Row{idx, j.Name, j.Group, j.ID, status, runnableMark(j)}
		if allInfos {
			row = append(row, orDash(j.LastExecution), orDash(j.NextExecution), orDash(j.AvgDuration))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func jobInfoAction(ctx context.Context, cmd *cli.Command) error {
	s, _, list, _, err := listJobs(ctx, cmd)
	if err != nil {
		return err
	}
	job, err := selectJob(cmd, list)
	if err != nil {
		return err
	}

	runs, schedErr := job.NextRuns(time.Now(), nextRunCount)
	if schedErr != nil && !errors.Is(schedErr, jobs.ErrNoSchedule) {
		log.Warn("Could not compute upcoming runs", "job", job.String(), "error", schedErr)
	}

	w := stdout(cmd)
	format := outputFormat(s.settings)
	if format != formatTable {
		info := struct {
			jobs.Job
			NextRuns []time.Time `json:"nextRuns,omitempty"`
		}{*job, runs}
		_, err := writeStructured(w, format, info)
		return err
	}

	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Name", job.Name},
		{"Group", job.Group},
		{"ID", job.ID},
		{"Status", orDash(job.Status)},
		{"Last execution", orDash(job.LastExecution)},
		{"Next execution", orDash(job.NextExecution)},
		{"Avg. duration", orDash(job.AvgDuration)},
		{"Has history", job.HasHistory},
		{"Runnable", job.IsRunnable},
		{"Editable", job.IsEditable},
		{"Toggle", orDash(string(job.Action))},
		{"Cron", job.IsCron},
		{"Cron expression", orDash(job.CronExpression)},
		{"Repeat interval (ms)", orDash(job.RepeatInterval)},
	})
	for i, r := range runs {
		label := ""
		if i == 0 {
			label = "Upcoming runs"
		}
		t.AppendRow(table.Row{label, r.Format(time.DateTime)})
	}
	t.Render()
	return nil
}

type jobActionFunc func(*jobs.Scraper, context.Context, jobs.Job, string) (bool, error)

func jobAction(ctx context.Context, cmd *cli.Command, verb string, act jobActionFunc) error {
	_, scraper, list, token, err := listJobs(ctx, cmd)
	if err != nil {
		return err
	}
	job, err := selectJob(cmd, list)
	if err != nil {
		return err
	}

	log.Info(fmt.Sprintf("Job %s selected, trying to %s it now", job, verb))
	ok, err := act(scraper, ctx, *job, token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("could not %s job %s", verb, job)
	}
	log.Info(fmt.Sprintf("Job %s: %s succeeded", job, verb))
	return nil
}
