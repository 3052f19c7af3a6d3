package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := Run{
		ID:          id,
		Network:     "net",
		NetworkHash: "test-hash",
		IRVersion:   ir.IRVersion,
	}
	if err := s.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun(%s) failed: %v", id, err)
	}
	return run
}

// createTestEvent creates a proc write on channel "out".
func createTestEvent(runID string, seq int64, v ir.Value) engine.ChannelEvent {
	return engine.ChannelEvent{
		RunID:   runID,
		Seq:     seq,
		Round:   1,
		Kind:    engine.EventWrite,
		Channel: "out",
		Proc:    "p",
		Value:   v,
	}
}

func u32(v uint64) ir.Value { return ir.UBits(v, 32) }
