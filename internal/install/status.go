package install

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
	"github.com/rubiojr/plup/internal/upm"
)

// pendingTask is the in-progress document of the plugin manager. The type
// field is only present while the task is running.
type pendingTask struct {
	Type   *string `json:"type"`
	Status struct {
		AmountDownloaded *float64 `json:"amountDownloaded"`
		Done             bool     `json:"done"`
		SubCode          string   `json:"subCode"`
		ContentType      string   `json:"contentType"`
		ErrorMessage     string   `json:"errorMessage"`
		Exception        string   `json:"exception"`
	} `json:"status"`
	Links struct {
		Self string `json:"self"`
	} `json:"links"`
}

func decodeTask(raw []byte) (*pendingTask, error) {
	var task pendingTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, &remote.MalformedResponseError{Kind: "install status", Raw: raw, Err: err}
	}
	return &task, nil
}

// progress reads amountDownloaded as a percentage.
func (t *pendingTask) progress() int {
	if t.Status.AmountDownloaded == nil {
		return 0
	}
	return clamp(int(math.Round(*t.Status.AmountDownloaded)))
}

func (t *pendingTask) running() bool {
	return t.Type != nil
}

func (t *pendingTask) message() string {
	if t.Status.ErrorMessage != "" {
		return t.Status.ErrorMessage
	}
	return t.Status.Exception
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// terminalStep builds the final step. The payload is kept raw when it is not
// a plugin document.
func terminalStep(raw []byte) *Step {
	step := &Step{Progress: 100, Done: true, Raw: raw}
	p, err := upm.DecodePlugin(raw)
	if err != nil {
		log.Debug("Terminal install payload is not a plugin", "error", err)
		return step
	}
	step.Plugin = p
	return step
}

// stripTextarea removes the <textarea> wrapper the upload endpoint puts around
// its JSON answer.
func stripTextarea(body []byte) []byte {
	s := strings.ReplaceAll(string(body), "<textarea>", "")
	s = strings.ReplaceAll(s, "</textarea>", "")
	return []byte(s)
}
