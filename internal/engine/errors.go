package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/ir"
)

var (
	// ErrGeneratorAttached is returned when a second generator is attached
	// to a queue.
	ErrGeneratorAttached = errors.New("generator already attached")

	// ErrConsumerAttached is returned when a second consumer is attached
	// to a queue.
	ErrConsumerAttached = errors.New("consumer already attached")

	// ErrUnknownChannel is returned when a channel name is not part of the
	// network.
	ErrUnknownChannel = errors.New("unknown channel")
)

// DeadlockError is returned when a round makes no progress while procs are
// blocked on empty channels.
type DeadlockError struct {
	Round    int64    // Round in which the deadlock was detected
	Channels []string // Blocked channels, sorted
	Procs    []string // Blocked procs, sorted
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("proc network is deadlocked: blocked channels: %s", strings.Join(e.Channels, ", "))
}

// DeadlineExceededError is returned when a tick ceiling is reached before
// the requested condition holds.
type DeadlineExceededError struct {
	Limit int64
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("exceeded limit of %d ticks", e.Limit)
}

// CapacityExceededError is returned by a write to a bounded channel that
// already holds Capacity values.
type CapacityExceededError struct {
	Channel  string
	Capacity int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("channel %s: capacity of %d values exceeded", e.Channel, e.Capacity)
}

// TypeMismatchError is returned when a value written to or generated for a
// channel does not have the channel's type.
type TypeMismatchError struct {
	Channel string
	Want    ir.Type
	Got     ir.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("channel %s: value of type %s, want %s", e.Channel, e.Got, e.Want)
}

// NetworkError is returned by New when the network fails validation.
type NetworkError struct {
	Network string
	Errors  []compiler.ValidationError
}

func (e *NetworkError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("network %s: %s", e.Network, e.Errors[0])
	}
	return fmt.Sprintf("network %s: %d validation errors (first: %s)", e.Network, len(e.Errors), e.Errors[0])
}

// Unwrap exposes the individual validation errors to errors.Is and errors.As.
func (e *NetworkError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		errs[i] = ve
	}
	return errs
}

// RuntimeError represents a failure while evaluating a proc tick.
//
// Runtime errors include:
//   - Evaluation: a node could not be evaluated from its operands
//   - Generator: a generator produced a value of the wrong type
//
// Networks accepted by New are type checked, so runtime errors point at
// values that entered through generators or at out-of-range selects.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Proc and Node identify where evaluation failed.
	Proc string
	Node string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEvaluation indicates a node could not be evaluated.
	ErrCodeEvaluation RuntimeErrorCode = "EVALUATION_FAILED"

	// ErrCodeGenerator indicates a generator produced an invalid value.
	ErrCodeGenerator RuntimeErrorCode = "GENERATOR_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (proc=%s, node=%s)", e.Code, e.Message, e.Proc, e.Node)
	}
	if e.Proc != "" {
		return fmt.Sprintf("%s: %s (proc=%s)", e.Code, e.Message, e.Proc)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsDeadlock returns true if the error is a deadlock.
// Uses errors.As to handle wrapped errors.
func IsDeadlock(err error) bool {
	var de *DeadlockError
	return errors.As(err, &de)
}

// IsDeadlineExceeded returns true if the error is a tick ceiling error.
// Uses errors.As to handle wrapped errors.
func IsDeadlineExceeded(err error) bool {
	var de *DeadlineExceededError
	return errors.As(err, &de)
}

// IsCapacityExceeded returns true if the error is a capacity violation.
// Uses errors.As to handle wrapped errors.
func IsCapacityExceeded(err error) bool {
	var ce *CapacityExceededError
	return errors.As(err, &ce)
}

// newEvaluationError creates a RuntimeError for a failed node.
func newEvaluationError(proc, node, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEvaluation,
		Message: fmt.Sprintf(format, args...),
		Proc:    proc,
		Node:    node,
	}
}
