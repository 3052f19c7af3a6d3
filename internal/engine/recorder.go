package engine

import (
	"github.com/roach88/procnet/internal/ir"
)

// EventKind distinguishes channel writes from reads.
type EventKind string

const (
	EventWrite EventKind = "write"
	EventRead  EventKind = "read"
)

// ChannelEvent is one value crossing a channel queue.
//
// Proc is empty for writes and reads made by the caller rather than by a
// proc. Generated is set on reads whose value came from a generator.
// Round is the round in which the event happened; events made by the
// caller between rounds carry the number of rounds completed so far.
type ChannelEvent struct {
	RunID     string
	Seq       int64
	Round     int64
	Kind      EventKind
	Channel   string
	Proc      string
	Value     ir.Value
	Generated bool
}

// External reports whether the caller, not a proc, made the event.
func (ev ChannelEvent) External() bool { return ev.Proc == "" }

// Describe returns a JSON-friendly form of the event, used for trace hashes,
// golden files and CLI output. The run ID is omitted so traces of different
// runs compare equal.
func (ev ChannelEvent) Describe() map[string]any {
	d := map[string]any{
		"seq":     ev.Seq,
		"round":   ev.Round,
		"kind":    string(ev.Kind),
		"channel": ev.Channel,
		"value":   ev.Value,
	}
	if ev.Proc != "" {
		d["proc"] = ev.Proc
	}
	if ev.Generated {
		d["generated"] = true
	}
	return d
}

// Recorder receives every channel event of a session, in seq order.
// Implemented by TraceRecorder (in memory) and store.RunRecorder (SQLite).
type Recorder interface {
	RecordEvent(ev ChannelEvent) error
}

// TraceRecorder keeps channel events in memory.
type TraceRecorder struct {
	events []ChannelEvent
}

// NewTraceRecorder creates an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

// RecordEvent implements Recorder.
func (r *TraceRecorder) RecordEvent(ev ChannelEvent) error {
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *TraceRecorder) Events() []ChannelEvent {
	out := make([]ChannelEvent, len(r.events))
	copy(out, r.events)
	return out
}

// multiRecorder fans events out to several recorders.
type multiRecorder []Recorder

func (m multiRecorder) RecordEvent(ev ChannelEvent) error {
	for _, r := range m {
		if err := r.RecordEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// DescribeTrace converts events into their JSON-friendly form.
func DescribeTrace(events []ChannelEvent) []any {
	out := make([]any, len(events))
	for i, ev := range events {
		out[i] = ev.Describe()
	}
	return out
}

// TraceHash computes the content hash of a trace.
func TraceHash(events []ChannelEvent) (string, error) {
	return ir.TraceHash(DescribeTrace(events))
}

// Metrics observes engine activity.
// Implemented by metrics.Collectors.
type Metrics interface {
	// ObserveRound is called after every round.
	ObserveRound(network string, completed, blocked int, progress bool)

	// ObserveEvent is called for every channel write and read.
	ObserveEvent(network, channel string, kind EventKind)

	// ObserveDeadlock is called when a deadlock is reported.
	ObserveDeadlock(network string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRound(string, int, int, bool)     {}
func (nopMetrics) ObserveEvent(string, string, EventKind) {}
func (nopMetrics) ObserveDeadlock(string)                  {}
