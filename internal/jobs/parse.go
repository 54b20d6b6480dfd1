package jobs

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rubiojr/plup/internal/remote"
)

const (
	tableSelector = "table#schedule-admin"

	headerStatus        = "Status"
	headerLastExecution = "Last Execution"
	headerNextExecution = "Next Execution"
	headerAvgDuration   = "Avg. Duration"
)

// Parse reads the jobs table of the admin page. Columns are located by their
// header text, so their order does not matter.
func Parse(doc *goquery.Document) ([]Job, error) {
	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		return nil, &remote.MalformedResponseError{Kind: "scheduled jobs page", Missing: []string{tableSelector}}
	}

	columns := map[string]int{}
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		name := strings.TrimSpace(th.Text())
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	})

	var missing []string
	for _, h := range []string{headerStatus, headerLastExecution, headerNextExecution, headerAvgDuration} {
		if _, ok := columns[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, &remote.MalformedResponseError{Kind: "scheduled jobs table", Missing: missing}
	}

	jobs := []Job{}
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		cell := func(header string) string {
			return strings.TrimSpace(cells.Eq(columns[header]).Text())
		}
		has := func(selector string) bool {
			return row.Find(selector).Length() > 0
		}

		job := Job{
			Name:           attr(row, "data-job-name"),
			Group:          attr(row, "data-job-group"),
			ID:             attr(row, "data-job-id"),
			Status:         cell(headerStatus),
			LastExecution:  cell(headerLastExecution),
			NextExecution:  cell(headerNextExecution),
			AvgDuration:    cell(headerAvgDuration),
			HasHistory:     has(".show-history"),
			IsRunnable:     has(".run-job"),
			IsEditable:     has(".edit-schedule"),
			CronExpression: attr(row, "data-cron-expression"),
			RepeatInterval: attr(row, "data-repeat-interval"),
		}
		job.IsCron, _ = strconv.ParseBool(attr(row, "data-is-cron"))

		switch {
		case has(".disable-job"):
			job.Action = ActionDisable
		case has(".enable-job"):
			job.Action = ActionEnable
		}
		jobs = append(jobs, job)
	})
	return jobs, nil
}

func attr(s *goquery.Selection, name string) string {
	return strings.TrimSpace(s.AttrOr(name, ""))
}
