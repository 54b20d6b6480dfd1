// Package install drives the asynchronous plugin installation of the remote
// plugin manager: a submit call followed by polling a status resource until
// the server reports a terminal state.
package install

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rubiojr/plup/internal/log"
	"github.com/rubiojr/plup/internal/remote"
	"github.com/rubiojr/plup/internal/upm"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultTimeout  = 10 * time.Minute
)

// Edition selects the installation protocol of the remote product.
type Edition int

const (
	// SelfHosted products take the plugin binary as a multipart upload.
	SelfHosted Edition = iota
	// Managed products fetch the plugin themselves from a descriptor URI.
	Managed
)

func (e Edition) String() string {
	switch e {
	case SelfHosted:
		return "self-hosted"
	case Managed:
		return "managed"
	default:
		return fmt.Sprintf("Edition(%d)", int(e))
	}
}

// Source names what to install: a local artifact for SelfHosted, a
// descriptor URI for Managed.
type Source struct {
	Path      string
	PluginURI string
}

// Policy bounds the poll loop. A zero Timeout or MaxAttempts disables that
// bound.
type Policy struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, Timeout: DefaultTimeout}
}

// Observer receives every progress value (0-100) reported by the server.
type Observer func(progress int)

// Step is the decoded state of the operation after one call.
type Step struct {
	Progress int
	Done     bool
	// Plugin is the decoded terminal payload; it may be nil on a terminal
	// step whose body was not a plugin document.
	Plugin *upm.Plugin
	// Raw is the undecoded body of the last response.
	Raw []byte

	self string
}

// Protocol is one edition's way to start and track an installation.
type Protocol interface {
	Submit(ctx context.Context, token string) (*Step, error)
	Poll(ctx context.Context, prev *Step) (*Step, error)
}

// Result is the terminal state of an installation.
type Result struct {
	Progress int
	Plugin   *upm.Plugin
	Raw      []byte
	Attempts int
	Elapsed  time.Duration
}

// PollTimeoutError means the server never reported a terminal state within
// the Policy bounds.
type PollTimeoutError struct {
	Attempts     int
	Elapsed      time.Duration
	LastProgress int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("installation did not finish after %d polls (%s, last progress %d%%)",
		e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastProgress)
}

// NewProtocol returns the protocol implementation of edition for src.
func NewProtocol(edition Edition, rc *remote.Client, src Source) (Protocol, error) {
	switch edition {
	case SelfHosted:
		if src.Path == "" {
			return nil, errors.New("self-hosted installation needs an artifact path")
		}
		return &selfHosted{client: rc, path: src.Path}, nil
	case Managed:
		if src.PluginURI == "" {
			return nil, errors.New("managed installation needs a plugin descriptor URI")
		}
		return &managed{client: rc, pluginURI: src.PluginURI}, nil
	default:
		return nil, fmt.Errorf("unsupported edition %s", edition)
	}
}

// Install fetches a fresh action token and runs the edition's protocol.
func Install(ctx context.Context, rc *remote.Client, edition Edition, src Source, policy Policy, observe Observer) (*Result, error) {
	proto, err := NewProtocol(edition, rc, src)
	if err != nil {
		return nil, err
	}
	token, err := rc.Token(ctx)
	if err != nil {
		return nil, err
	}
	return Run(ctx, proto, token, policy, observe)
}

// Run submits through proto and polls until a terminal step, an error, the
// end of ctx or the Policy bounds.
func Run(ctx context.Context, proto Protocol, token string, policy Policy, observe Observer) (*Result, error) {
	if observe == nil {
		observe = func(int) {}
	}
	if policy.Interval <= 0 {
		policy.Interval = DefaultInterval
	}

	start := time.Now()
	pctx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	attempts := 0
	timedOut := func(progress int) error {
		return &PollTimeoutError{Attempts: attempts, Elapsed: time.Since(start), LastProgress: progress}
	}
	// distinguishes our own deadline from the caller giving up
	expired := func(err error) bool {
		return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && pctx.Err() != nil
	}

	step, err := proto.Submit(pctx, token)
	if err != nil {
		if expired(err) {
			return nil, timedOut(0)
		}
		return nil, err
	}
	observe(step.Progress)

	timer := time.NewTimer(policy.Interval)
	defer timer.Stop()

	for !step.Done {
		if policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts {
			return nil, timedOut(step.Progress)
		}

		timer.Reset(policy.Interval)
		select {
		case <-pctx.Done():
			if expired(pctx.Err()) {
				return nil, timedOut(step.Progress)
			}
			return nil, pctx.Err()
		case <-timer.C:
		}

		attempts++
		next, err := proto.Poll(pctx, step)
		if err != nil {
			if expired(err) {
				return nil, timedOut(step.Progress)
			}
			return nil, err
		}
		log.Debug("Polled installation status", "attempt", attempts, "progress", next.Progress, "done", next.Done)
		step = next
		observe(step.Progress)
	}

	return &Result{
		Progress: step.Progress,
		Plugin:   step.Plugin,
		Raw:      step.Raw,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}, nil
}
