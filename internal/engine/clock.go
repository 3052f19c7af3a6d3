package engine

import "sync/atomic"

// EventClock stamps channel events with sequence numbers.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type EventClock interface {
	Next() int64
	Current() int64
}

// Clock is the monotonic logical clock used to order channel events.
//
// All events are stamped with a strictly increasing seq number from this clock.
// This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, an Engine only calls Next() from the goroutine driving it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to continue numbering after events already stored for a run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
