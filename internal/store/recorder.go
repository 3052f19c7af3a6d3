package store

import (
	"context"
	"fmt"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

// RunRecorder writes channel events to the store as they happen.
// It implements engine.Recorder.
//
// The run must be created (BeginRun) before the first event is recorded.
type RunRecorder struct {
	store  *Store
	ctx    context.Context
	events int64
}

// NewRunRecorder creates a recorder writing to s. ctx bounds every write.
func NewRunRecorder(ctx context.Context, s *Store) *RunRecorder {
	return &RunRecorder{store: s, ctx: ctx}
}

// RecordEvent implements engine.Recorder.
func (r *RunRecorder) RecordEvent(ev engine.ChannelEvent) error {
	if err := r.store.WriteEvent(r.ctx, ev); err != nil {
		return err
	}
	r.events++
	return nil
}

// Events returns the number of events recorded so far.
func (r *RunRecorder) Events() int64 { return r.events }

// BeginRun creates the run record for e. source names the file the network
// was loaded from and may be empty.
func (s *Store) BeginRun(ctx context.Context, e *engine.Engine, source string) error {
	hash, err := ir.NetworkHash(e.Network())
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return s.CreateRun(ctx, Run{
		ID:          e.RunID(),
		Network:     e.Network().Name,
		NetworkHash: hash,
		Source:      source,
		IRVersion:   ir.IRVersion,
	})
}

// EndRun records the outcome of e's run. The trace hash is computed from
// the events already in the store, so it matches what a replay compares
// against.
func (s *Store) EndRun(ctx context.Context, e *engine.Engine, status RunStatus, runErr error) error {
	events, err := s.ReadEvents(ctx, e.RunID())
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	hash, err := engine.TraceHash(events)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}

	run := Run{
		ID:        e.RunID(),
		Status:    status,
		Rounds:    e.Rounds(),
		Ticks:     e.Ticks(),
		TraceHash: hash,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	return s.FinishRun(ctx, run)
}
