package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/procnet/internal/testutil"
)

func TestReplayRun_Match(t *testing.T) {
	s := createTestStore(t)
	e, _ := recordAccumulator(t, s, "run-1")

	result, err := s.ReplayRun(context.Background(), "run-1", testutil.AccumulatorNetwork())
	if err != nil {
		t.Fatalf("ReplayRun failed: %v", err)
	}
	if !result.Match() {
		t.Errorf("replay hash %s != recorded %s", result.ReplayHash, result.RecordedHash)
	}
	if result.Rounds != e.Rounds() {
		t.Errorf("Rounds = %d, want %d", result.Rounds, e.Rounds())
	}
	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
}

func TestReplayRun_NetworkMismatch(t *testing.T) {
	s := createTestStore(t)
	recordAccumulator(t, s, "run-1")

	_, err := s.ReplayRun(context.Background(), "run-1", testutil.PassthroughNetwork())
	if !errors.Is(err, ErrNetworkMismatch) {
		t.Errorf("ReplayRun = %v, want ErrNetworkMismatch", err)
	}
}

func TestReplayRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReplayRun(context.Background(), "missing", testutil.AccumulatorNetwork())
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReplayRun = %v, want ErrRunNotFound", err)
	}
}

func TestReplayRun_TamperedEvent(t *testing.T) {
	s := createTestStore(t)
	recordAccumulator(t, s, "run-1")

	_, err := s.DB().Exec(`
		UPDATE channel_events SET value = '999'
		WHERE run_id = 'run-1' AND channel = 'out' AND kind = 'write' AND seq = (
			SELECT MIN(seq) FROM channel_events WHERE run_id = 'run-1' AND channel = 'out'
		)
	`)
	if err != nil {
		t.Fatalf("tamper: %v", err)
	}

	result, err := s.ReplayRun(context.Background(), "run-1", testutil.AccumulatorNetwork())
	if err != nil {
		t.Fatalf("ReplayRun failed: %v", err)
	}
	if result.Match() {
		t.Error("replay of a tampered run should not match")
	}
}
