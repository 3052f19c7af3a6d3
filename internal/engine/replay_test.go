package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/testutil"
)

// recordAccumulatorRun drives the accumulator with a generator, a caller
// write between rounds and caller reads after the run.
func recordAccumulatorRun(t *testing.T) (*Engine, []ChannelEvent) {
	t.Helper()
	trace := NewTraceRecorder()
	e := newTestEngine(t, testutil.AccumulatorNetwork(),
		WithGenerator("in", FixedValueGenerator(u32s(1, 2, 3)...)),
		WithRecorder(trace))

	require.NoError(t, e.Tick())
	require.NoError(t, e.Queues().MustQueue("in").Write(u32(100)))
	_, err := e.TickUntilBlocked(context.Background())
	require.NoError(t, err)

	out := e.Queues().MustQueue("out")
	for !out.IsEmpty() {
		out.Read()
	}
	return e, trace.Events()
}

func TestTraceRecorder_Events(t *testing.T) {
	e, events := recordAccumulatorRun(t)

	// Generated 1; caller writes 100; then generated 2 and 3.
	var sums []ir.Value
	for _, ev := range events {
		if ev.Kind == EventWrite && ev.Channel == "out" {
			assert.Equal(t, "accum", ev.Proc)
			sums = append(sums, ev.Value)
		}
	}
	assert.Equal(t, u32s(1, 101, 103, 106), sums)

	var external []ChannelEvent
	for _, ev := range events {
		assert.Equal(t, e.RunID(), ev.RunID)
		if ev.External() {
			external = append(external, ev)
		}
	}
	require.Len(t, external, 5, "one caller write and four caller reads")
	assert.Equal(t, EventWrite, external[0].Kind)
	assert.Equal(t, int64(1), external[0].Round)
	for _, ev := range external[1:] {
		assert.Equal(t, EventRead, ev.Kind)
		assert.Equal(t, e.Rounds(), ev.Round)
	}

	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq, "seq is strictly increasing")
	}
}

func TestReplay_Matches(t *testing.T) {
	e, events := recordAccumulatorRun(t)

	result, err := Replay(context.Background(), testutil.AccumulatorNetwork(), events, e.Rounds())
	require.NoError(t, err)

	assert.True(t, result.Match(), "replay hash %s, recorded %s", result.ReplayHash, result.RecordedHash)
	assert.NoError(t, result.Err)
	assert.Equal(t, e.Rounds(), result.Rounds)
	assert.Len(t, result.Events, len(events))
}

func TestReplay_DetectsTamperedTrace(t *testing.T) {
	e, events := recordAccumulatorRun(t)

	for i, ev := range events {
		if ev.Kind == EventWrite && ev.Channel == "out" {
			events[i].Value = u32(9999)
			break
		}
	}

	result, err := Replay(context.Background(), testutil.AccumulatorNetwork(), events, e.Rounds())
	require.NoError(t, err)
	assert.False(t, result.Match())
}

func TestReplay_FailingRun(t *testing.T) {
	n := testutil.IotaNetwork(0, 1)
	n.Channels[0].Capacity = 2
	trace := NewTraceRecorder()
	e := newTestEngine(t, n, WithRecorder(trace))

	_, err := e.TickUntilBlocked(context.Background())
	require.True(t, IsCapacityExceeded(err))

	result, err := Replay(context.Background(), n, trace.Events(), e.Rounds())
	require.NoError(t, err)
	assert.True(t, IsCapacityExceeded(result.Err), "the replay fails the same way")
	assert.True(t, result.Match())
}

func TestTraceHash_IgnoresRunID(t *testing.T) {
	ev := ChannelEvent{RunID: "a", Seq: 1, Round: 1, Kind: EventWrite, Channel: "out", Proc: "p", Value: u32(1)}
	other := ev
	other.RunID = "b"

	h1, err := TraceHash([]ChannelEvent{ev})
	require.NoError(t, err)
	h2, err := TraceHash([]ChannelEvent{other})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestWithRecorder_FansOut(t *testing.T) {
	a, b := NewTraceRecorder(), NewTraceRecorder()
	e := newTestEngine(t, testutil.IotaNetwork(0, 1), WithRecorder(a), WithRecorder(b))

	require.NoError(t, e.Tick())
	assert.Len(t, a.Events(), 1)
	assert.Equal(t, a.Events(), b.Events())
}
