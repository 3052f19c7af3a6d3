package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/procnet/internal/ir"
)

// # Replay
//
// Replay is STRUCTURAL, not a special engine mode: a replayed session runs
// the same round loop as the original. Determinism does the rest.
//
// Only the inputs of the original run are taken from its trace:
//
//  1. Generated reads become a FixedValueGenerator per channel, so procs
//     receive the same generator values in the same order.
//  2. Writes and reads made by the caller are re-applied between the same
//     rounds, in seq order.
//
// Every event made by a proc is then reproduced by evaluation alone. The
// replay matches when the trace hashes of both runs are equal.

// ReplayResult is the outcome of Replay.
type ReplayResult struct {
	Events       []ChannelEvent
	Rounds       int64
	RecordedHash string
	ReplayHash   string

	// Err is the error that ended the replayed run early, if any. A run
	// that originally failed is expected to fail the same way.
	Err error
}

// Match reports whether the replay reproduced the recorded trace.
func (r *ReplayResult) Match() bool {
	return r.RecordedHash == r.ReplayHash
}

// Replay re-runs a recorded session of n for the given number of rounds
// and compares the resulting trace with recorded.
//
// opts are applied to the replay engine; generators for recorded channels
// and an in-memory recorder are added by Replay.
func Replay(ctx context.Context, n *ir.Network, recorded []ChannelEvent, rounds int64, opts ...Option) (*ReplayResult, error) {
	recorded = slices.Clone(recorded)
	slices.SortStableFunc(recorded, func(a, b ChannelEvent) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	var channels []string
	generated := make(map[string][]ir.Value)
	external := make(map[int64][]ChannelEvent)
	for _, ev := range recorded {
		if ev.Kind == EventRead && ev.Generated {
			if _, ok := generated[ev.Channel]; !ok {
				channels = append(channels, ev.Channel)
			}
			generated[ev.Channel] = append(generated[ev.Channel], ev.Value)
		}
		if ev.External() {
			external[ev.Round] = append(external[ev.Round], ev)
		}
	}

	trace := NewTraceRecorder()
	all := slices.Clone(opts)
	for _, ch := range channels {
		all = append(all, WithGenerator(ch, FixedValueGenerator(generated[ch]...)))
	}
	all = append(all, WithRecorder(trace))

	e, err := New(n, all...)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	defer e.Close()

	result := &ReplayResult{}
	for k := int64(0); ; k++ {
		if err := e.applyExternal(external[k]); err != nil {
			return nil, fmt.Errorf("replay: round %d: %w", k, err)
		}
		if k >= rounds {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := e.round(); err != nil {
			result.Err = err
			break
		}
	}

	result.Events = trace.Events()
	result.Rounds = e.Rounds()
	if result.RecordedHash, err = TraceHash(recorded); err != nil {
		return nil, err
	}
	if result.ReplayHash, err = TraceHash(result.Events); err != nil {
		return nil, err
	}

	e.logger.Info("replay finished",
		"network", n.Name,
		"rounds", result.Rounds,
		"match", result.Match(),
	)
	return result, nil
}

// applyExternal re-applies caller writes and reads. Generated reads made by
// the caller are pulled from the replay generators the same way.
func (e *Engine) applyExternal(events []ChannelEvent) error {
	for _, ev := range events {
		q, err := e.queues.Queue(ev.Channel)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case EventWrite:
			if err := q.Write(ev.Value); err != nil {
				return err
			}
		case EventRead:
			if _, ok := q.Read(); !ok {
				return fmt.Errorf("channel %s: recorded read found no value", ev.Channel)
			}
		}
	}
	return nil
}
