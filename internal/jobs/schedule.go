package jobs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// quartzParser understands the seconds-first expressions the product uses.
var quartzParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ErrNoSchedule is returned for jobs that carry neither a cron expression nor
// a repeat interval.
var ErrNoSchedule = errors.New("job has no schedule")

// Schedule returns the schedule of the job: its cron expression for cron
// jobs, its repeat interval (milliseconds) otherwise.
func (j Job) Schedule() (cron.Schedule, error) {
	if j.IsCron || j.CronExpression != "" {
		if j.CronExpression == "" {
			return nil, ErrNoSchedule
		}
		return ParseQuartz(j.CronExpression)
	}

	if j.RepeatInterval == "" {
		return nil, ErrNoSchedule
	}
	ms, err := strconv.ParseInt(j.RepeatInterval, 10, 64)
	if err != nil || ms <= 0 {
		return nil, fmt.Errorf("invalid repeat interval %q", j.RepeatInterval)
	}
	return cron.Every(time.Duration(ms) * time.Millisecond), nil
}

// NextRuns lists the next n fire times after from.
func (j Job) NextRuns(from time.Time, n int) ([]time.Time, error) {
	sched, err := j.Schedule()
	if err != nil {
		return nil, err
	}
	runs := make([]time.Time, 0, n)
	t := from
	for range n {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		runs = append(runs, t)
	}
	return runs, nil
}

// ParseQuartz parses a Quartz style expression: the "?" placeholder is
// accepted, an optional trailing year field is dropped and numeric weekdays
// (1-7, Sunday first) are shifted to 0-6.
func ParseQuartz(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) == 7 {
		fields = fields[:6]
	}
	for i, f := range fields {
		if f == "?" {
			fields[i] = "*"
		}
	}
	if len(fields) == 6 {
		dow, err := quartzWeekdays(fields[5])
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		fields[5] = dow
	}
	sched, err := quartzParser.Parse(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// quartzWeekdays rewrites the numeric values of a day-of-week field. Names,
// wildcards and steps are kept as they are.
func quartzWeekdays(field string) (string, error) {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		rng, step, hasStep := strings.Cut(part, "/")
		bounds := strings.Split(rng, "-")
		for j, b := range bounds {
			n, err := strconv.Atoi(b)
			if err != nil {
				continue
			}
			if n < 1 || n > 7 {
				return "", fmt.Errorf("day of week %d out of range 1-7", n)
			}
			bounds[j] = strconv.Itoa(n - 1)
		}
		parts[i] = strings.Join(bounds, "-")
		if hasStep {
			parts[i] += "/" + step
		}
	}
	return strings.Join(parts, ","), nil
}
