package harness

import (
	"errors"

	"github.com/roach88/procnet/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: the expected outcome
	// matched and every assertion held.
	Pass bool `json:"pass"`

	// Scenario is the name of the scenario that produced the result.
	Scenario string `json:"scenario"`

	// RunID is the deterministic run ID of the session.
	RunID string `json:"run_id"`

	// Ticks is the number of rounds that made progress.
	Ticks int64 `json:"ticks"`

	// Rounds is the number of rounds run, including stalled ones.
	Rounds int64 `json:"rounds"`

	// Error is the error that ended the run, if any, and ErrorKind its
	// classification (see ErrorKind).
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// Trace contains every channel event in seq order, as stored.
	Trace []engine.ChannelEvent `json:"-"`

	// Outputs holds the values left in each channel queue, in native form.
	Outputs map[string][]any `json:"outputs"`

	// State holds each proc's saved state, in native form.
	State map[string]map[string]any `json:"state"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []engine.ChannelEvent{},
		Outputs: make(map[string][]any),
		State:   make(map[string]map[string]any),
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Error kinds reported in Result.ErrorKind and matched by expect.error.
const (
	KindDeadlock         = "deadlock"
	KindDeadlineExceeded = "deadline_exceeded"
	KindCapacityExceeded = "capacity_exceeded"
	KindTypeMismatch     = "type_mismatch"
	KindRuntime          = "runtime"
	KindOther            = "other"
)

// ErrorKind classifies a run-ending error. Returns "" for nil.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case engine.IsDeadlock(err):
		return KindDeadlock
	case engine.IsDeadlineExceeded(err):
		return KindDeadlineExceeded
	case engine.IsCapacityExceeded(err):
		return KindCapacityExceeded
	}
	var tm *engine.TypeMismatchError
	if errors.As(err, &tm) {
		return KindTypeMismatch
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return KindRuntime
	}
	return KindOther
}
