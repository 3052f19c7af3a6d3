package testutil

// DeterministicClock numbers channel events 1, 2, 3, ... for tests and the
// scenario harness. Rewind starts the numbering over, so a replay stamped
// with the same clock yields the same seq values as the recorded run.
//
// Not safe for concurrent use; an engine only stamps from the goroutine
// driving it.
type DeterministicClock struct {
	last int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next issues the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.last++
	return c.last
}

// Current returns the last number issued, or 0 before the first Next.
func (c *DeterministicClock) Current() int64 { return c.last }

// Rewind resets the clock and returns how many numbers it had issued.
func (c *DeterministicClock) Rewind() int64 {
	n := c.last
	c.last = 0
	return n
}
