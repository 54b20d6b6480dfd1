package jobs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrJobNotFound = errors.New("job could not be found")
	ErrNoJobs      = errors.New("no scheduled jobs found")
)

// AmbiguousJobError lists the jobs an id (and group) filter still matches.
// Indexes holds the position of each candidate in the full job list, the
// value --idx expects.
type AmbiguousJobError struct {
	ID         string
	Group      string
	Candidates []Job
	Indexes    []int
}

func (e *AmbiguousJobError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d jobs match id %q", len(e.Candidates), e.ID)
	if e.Group != "" {
		fmt.Fprintf(&b, " and group %q", e.Group)
	}
	b.WriteString(", narrow it down with --group or --idx:")
	for i, j := range e.Candidates {
		if i < len(e.Indexes) {
			fmt.Fprintf(&b, "\n  %3d", e.Indexes[i])
		} else {
			b.WriteString("\n     ")
		}
		fmt.Fprintf(&b, "  %s  %s  %s", j.ID, j.Group, j.Name)
	}
	return b.String()
}

// Selector describes which job the operator asked for. Index is ignored when
// ID is set.
type Selector struct {
	Index *int
	ID    string
	Group string
}

// Empty reports a selector without any criteria.
func (s Selector) Empty() bool {
	return s.Index == nil && s.ID == ""
}

// Prompter asks the operator to pick one of jobs and returns its index.
type Prompter func(jobs []Job) (int, error)

// Select resolves sel against jobs: by id substring (narrowed by group
// substring when several ids match), else by index, else by asking prompt.
func Select(jobs []Job, sel Selector, prompt Prompter) (*Job, error) {
	switch {
	case sel.ID != "":
		matches := filter(jobs, allIndexes(len(jobs)), func(j Job) bool { return strings.Contains(j.ID, sel.ID) })
		if len(matches) > 1 && sel.Group != "" {
			matches = filter(jobs, matches, func(j Job) bool { return strings.Contains(j.Group, sel.Group) })
		}
		switch len(matches) {
		case 0:
			return nil, ErrJobNotFound
		case 1:
			return &jobs[matches[0]], nil
		default:
			candidates := make([]Job, len(matches))
			for i, idx := range matches {
				candidates[i] = jobs[idx]
			}
			return nil, &AmbiguousJobError{ID: sel.ID, Group: sel.Group, Candidates: candidates, Indexes: matches}
		}

	case sel.Index != nil:
		idx := *sel.Index
		if idx < 0 || idx >= len(jobs) {
			return nil, ErrJobNotFound
		}
		return &jobs[idx], nil

	default:
		if len(jobs) == 0 {
			return nil, ErrNoJobs
		}
		if prompt == nil {
			return nil, ErrJobNotFound
		}
		idx, err := prompt(jobs)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(jobs) {
			return nil, ErrJobNotFound
		}
		return &jobs[idx], nil
	}
}

// filter returns the indexes among idxs whose job passes keep.
func filter(jobs []Job, idxs []int, keep func(Job) bool) []int {
	var out []int
	for _, i := range idxs {
		if keep(jobs[i]) {
			out = append(out, i)
		}
	}
	return out
}

func allIndexes(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// NumberedPrompt prints a numbered menu to w and reads indexes from r until a
// valid one is entered.
func NumberedPrompt(r io.Reader, w io.Writer) Prompter {
	return func(jobs []Job) (int, error) {
		fmt.Fprintf(w, "%3s  %-40s %-30s %s\n", "idx", "name", "group", "runnable")
		for i, j := range jobs {
			runnable := "!"
			if j.IsRunnable {
				runnable = "✓"
			}
			fmt.Fprintf(w, "%3d  %-40.40s %-30.30s %s\n", i, j.Name, j.Group, runnable)
		}

		scanner := bufio.NewScanner(r)
		for {
			fmt.Fprint(w, "Select a job index (idx): ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return -1, err
				}
				return -1, io.ErrUnexpectedEOF
			}
			idx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if err == nil && idx >= 0 && idx < len(jobs) {
				return idx, nil
			}
		}
	}
}
