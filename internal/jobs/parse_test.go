package jobs

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubiojr/plup/internal/remote"
)

func loadDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func fixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/scheduledjobs.html")
	require.NoError(t, err)
	return string(data)
}

func TestParse(t *testing.T) {
	jobs, err := Parse(loadDoc(t, fixture(t)))
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	clean := jobs[0]
	assert.Equal(t, "Clean Temporary Directory", clean.Name)
	assert.Equal(t, "DEFAULT", clean.Group)
	assert.Equal(t, "cleanTempDirectoryJob", clean.ID)
	assert.Equal(t, "Scheduled", clean.Status)
	assert.True(t, clean.Scheduled())
	assert.Equal(t, "12 ms", clean.AvgDuration)
	assert.Equal(t, "Oct 20, 2026 04:00", clean.NextExecution)
	assert.Equal(t, "Oct 19, 2026 04:00", clean.LastExecution)
	assert.True(t, clean.HasHistory)
	assert.True(t, clean.IsRunnable)
	assert.True(t, clean.IsEditable)
	assert.Equal(t, ActionDisable, clean.Action)
	assert.True(t, clean.IsCron)
	assert.Equal(t, "0 0 4 * * ?", clean.CronExpression)

	mail := jobs[1]
	assert.Equal(t, "Disabled", mail.Status)
	assert.Equal(t, ActionEnable, mail.Action)
	assert.False(t, mail.IsRunnable)
	assert.False(t, mail.IsCron)
	assert.Equal(t, "60000", mail.RepeatInterval)

	digest := jobs[2]
	assert.Equal(t, ActionNone, digest.Action)
	assert.False(t, digest.IsRunnable)
}

func TestParseDisableRow(t *testing.T) {
	html := `<table id="schedule-admin">
	<thead><tr><th>Status</th><th>Last Execution</th><th>Next Execution</th><th>Avg. Duration</th></tr></thead>
	<tbody><tr data-job-id="x" data-job-name="X" data-job-group="g">
		<td>Scheduled</td><td>yesterday</td><td>tomorrow</td><td>5 ms</td>
		<td><a class="disable-job">Disable</a></td>
	</tr></tbody></table>`

	jobs, err := Parse(loadDoc(t, html))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "x", jobs[0].ID)
	assert.Equal(t, ActionDisable, jobs[0].Action)
	assert.False(t, jobs[0].IsRunnable)
	assert.Equal(t, "yesterday", jobs[0].LastExecution)
	assert.Equal(t, "tomorrow", jobs[0].NextExecution)
	assert.Equal(t, "5 ms", jobs[0].AvgDuration)
}

func TestParseColumnOrderIndependent(t *testing.T) {
	orders := [][]string{
		{"Status", "Last Execution", "Next Execution", "Avg. Duration"},
		{"Avg. Duration", "Next Execution", "Last Execution", "Status"},
		{"Next Execution", "Status", "Avg. Duration", "Last Execution"},
	}
	values := map[string]string{
		"Status":         "Scheduled",
		"Last Execution": "last",
		"Next Execution": "next",
		"Avg. Duration":  "7 ms",
	}

	for _, order := range orders {
		t.Run(strings.Join(order, ","), func(t *testing.T) {
			var head, cells strings.Builder
			for _, h := range order {
				head.WriteString("<th>" + h + "</th>")
				cells.WriteString("<td>" + values[h] + "</td>")
			}
			html := `<table id="schedule-admin"><thead><tr>` + head.String() + `</tr></thead>` +
				`<tbody><tr data-job-id="x"><td class="ignored-first"></td></tr></tbody></table>`
			html = strings.Replace(html, `<td class="ignored-first"></td>`, cells.String()+`<td><a class="run-job">Run</a></td>`, 1)

			jobs, err := Parse(loadDoc(t, html))
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, "Scheduled", jobs[0].Status)
			assert.Equal(t, "last", jobs[0].LastExecution)
			assert.Equal(t, "next", jobs[0].NextExecution)
			assert.Equal(t, "7 ms", jobs[0].AvgDuration)
			assert.True(t, jobs[0].IsRunnable)
		})
	}
}

func TestParseMissingTable(t *testing.T) {
	_, err := Parse(loadDoc(t, `<html><body><form id="login"></form></body></html>`))
	assert.True(t, remote.IsMalformed(err))
}

func TestParseMissingHeader(t *testing.T) {
	html := `<table id="schedule-admin"><thead><tr><th>Status</th></tr></thead><tbody></tbody></table>`
	_, err := Parse(loadDoc(t, html))
	var malformed *remote.MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, []string{"Last Execution", "Next Execution", "Avg. Duration"}, malformed.Missing)
}
