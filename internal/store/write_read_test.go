package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

func TestCreateRun_ReadRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := Run{
		ID:          "run-1",
		Network:     "accumulator",
		NetworkHash: "abc",
		Source:      "testdata/accumulator.cue",
		IRVersion:   ir.IRVersion,
	}
	if err := s.CreateRun(ctx, want); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun failed: %v", err)
	}
	want.Status = StatusRunning
	if got != want {
		t.Errorf("ReadRun = %+v, want %+v", got, want)
	}
}

func TestCreateRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1")
	dup := Run{ID: "run-1", Network: "other", NetworkHash: "x", IRVersion: ir.IRVersion}
	if err := s.CreateRun(ctx, dup); err != nil {
		t.Fatalf("duplicate CreateRun failed: %v", err)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun failed: %v", err)
	}
	if got.Network != "net" {
		t.Errorf("Network = %q, want first write %q", got.Network, "net")
	}
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	err := s.FinishRun(ctx, Run{
		ID:        "run-1",
		Status:    StatusDeadlocked,
		Rounds:    3,
		Ticks:     2,
		Error:     "proc network is deadlocked",
		TraceHash: "h",
	})
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun failed: %v", err)
	}
	if got.Status != StatusDeadlocked || got.Rounds != 3 || got.Ticks != 2 || got.TraceHash != "h" {
		t.Errorf("ReadRun = %+v", got)
	}
	if got.Network != "net" {
		t.Errorf("FinishRun must not touch Network, got %q", got.Network)
	}
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), Run{ID: "missing", Status: StatusCompleted})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadRun(missing) = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns on empty store = %v, want empty non-nil slice", runs)
	}

	createTestRun(t, s, "run-b")
	createTestRun(t, s, "run-a")
	if err := s.CreateRun(ctx, Run{ID: "run-c", Network: "other", NetworkHash: "h", IRVersion: "1"}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	runs, err = s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "run-a" || ids[1] != "run-b" || ids[2] != "run-c" {
		t.Errorf("ListRuns ids = %v, want [run-a run-b run-c]", ids)
	}

	runs, err = s.ListRuns(ctx, "other")
	if err != nil {
		t.Fatalf("ListRuns(other) failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-c" {
		t.Errorf("ListRuns(other) = %+v, want only run-c", runs)
	}
}

func TestWriteEvent_ReadEvents_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	// Written out of order on purpose.
	for _, seq := range []int64{3, 1, 2} {
		if err := s.WriteEvent(ctx, createTestEvent("run-1", seq, u32(uint64(seq*10)))); err != nil {
			t.Fatalf("WriteEvent(%d) failed: %v", seq, err)
		}
	}

	events, err := s.ReadEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	for i, ev := range events {
		wantSeq := int64(i + 1)
		if ev.Seq != wantSeq {
			t.Errorf("events[%d].Seq = %d, want %d", i, ev.Seq, wantSeq)
		}
		if !ir.Equal(ev.Value, u32(uint64(wantSeq*10))) {
			t.Errorf("events[%d].Value = %s", i, ev.Value)
		}
		if ev.Kind != engine.EventWrite || ev.Proc != "p" || ev.RunID != "run-1" {
			t.Errorf("events[%d] = %+v", i, ev)
		}
	}
}

func TestWriteEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	ev := createTestEvent("run-1", 1, u32(5))
	for i := 0; i < 2; i++ {
		if err := s.WriteEvent(ctx, ev); err != nil {
			t.Fatalf("WriteEvent #%d failed: %v", i+1, err)
		}
	}

	events, err := s.ReadEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("len(events) = %d, want 1", len(events))
	}
}

func TestWriteEvent_ExternalGeneratedRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	ev := engine.ChannelEvent{
		RunID:     "run-1",
		Seq:       1,
		Kind:      engine.EventRead,
		Channel:   "in",
		Value:     ir.NewTuple(ir.UBits(2, 8), ir.UBits('a', 8)),
		Generated: true,
	}
	if err := s.WriteEvent(ctx, ev); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	events, err := s.ReadEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	got := events[0]
	if !got.External() || !got.Generated || got.Round != 0 {
		t.Errorf("event = %+v, want external generated read in round 0", got)
	}
	if !ir.Equal(got.Value, ev.Value) {
		t.Errorf("Value = %s, want %s", got.Value, ev.Value)
	}
}

func TestWriteEvent_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteEvent(context.Background(), createTestEvent("missing", 1, u32(1)))
	if err == nil {
		t.Error("WriteEvent for unknown run should fail")
	}
}

func TestReadEvents_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "missing")
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("ReadEvents = %v, want empty non-nil slice", events)
	}
}

func TestReadChannelValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	events := []engine.ChannelEvent{
		createTestEvent("run-1", 1, u32(1)),
		{RunID: "run-1", Seq: 2, Kind: engine.EventRead, Channel: "out", Value: u32(1)},
		createTestEvent("run-1", 3, u32(3)),
		{RunID: "run-1", Seq: 4, Kind: engine.EventWrite, Channel: "other", Proc: "p", Value: u32(99)},
	}
	for _, ev := range events {
		if err := s.WriteEvent(ctx, ev); err != nil {
			t.Fatalf("WriteEvent(%d) failed: %v", ev.Seq, err)
		}
	}

	values, err := s.ReadChannelValues(ctx, "run-1", "out", engine.EventWrite)
	if err != nil {
		t.Fatalf("ReadChannelValues failed: %v", err)
	}
	if len(values) != 2 || !ir.Equal(values[0], u32(1)) || !ir.Equal(values[1], u32(3)) {
		t.Errorf("writes on out = %v, want [1 3]", values)
	}

	values, err = s.ReadChannelValues(ctx, "run-1", "in", engine.EventWrite)
	if err != nil {
		t.Fatalf("ReadChannelValues failed: %v", err)
	}
	if values == nil || len(values) != 0 {
		t.Errorf("writes on in = %v, want empty non-nil slice", values)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RunStatus
	}{
		{"nil", nil, StatusCompleted},
		{"deadlock", &engine.DeadlockError{Round: 2}, StatusDeadlocked},
		{"deadline", &engine.DeadlineExceededError{Limit: 5}, StatusDeadlineExceeded},
		{"other", errors.New("boom"), StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
