package store

import (
	"errors"

	"github.com/roach88/procnet/internal/engine"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the outcome of a recorded run.
type RunStatus string

const (
	StatusRunning          RunStatus = "running"
	StatusCompleted        RunStatus = "completed"
	StatusBlocked          RunStatus = "blocked"
	StatusDeadlocked       RunStatus = "deadlocked"
	StatusDeadlineExceeded RunStatus = "deadline_exceeded"
	StatusFailed           RunStatus = "failed"
)

// StatusOf maps the error that ended a run to its status.
// A nil error means the run completed.
func StatusOf(err error) RunStatus {
	switch {
	case err == nil:
		return StatusCompleted
	case engine.IsDeadlock(err):
		return StatusDeadlocked
	case engine.IsDeadlineExceeded(err):
		return StatusDeadlineExceeded
	default:
		return StatusFailed
	}
}

// Run is one recorded interpreter session.
type Run struct {
	ID          string
	Network     string
	NetworkHash string
	Source      string // file the network was loaded from, if any
	IRVersion   string
	Status      RunStatus
	Rounds      int64
	Ticks       int64
	Error       string
	TraceHash   string
}
