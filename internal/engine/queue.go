package engine

import (
	"iter"

	"github.com/roach88/procnet/internal/ir"
)

// ChannelQueue is the FIFO of pending values of one channel.
//
// A queue may have one generator attached, which supplies values on demand
// when the buffer is empty, and one consumer, which takes written values
// instead of the buffer.
//
// Thread-safety: ChannelQueue is NOT safe for concurrent use. It belongs to
// one Engine, which drives it from a single goroutine.
type ChannelQueue struct {
	channel *ir.Channel
	values  []ir.Value

	// Generator state, from iter.Pull.
	next func() (ir.Value, bool)
	stop func()

	consumer func(ir.Value)

	writes int64
	reads  int64
	err    error

	// Set by the owning engine for event recording.
	onWrite func(v ir.Value)
	onRead  func(v ir.Value, generated bool)
}

// NewChannelQueue creates an empty queue for ch. Initial values are not
// added; QueueManager does that.
func NewChannelQueue(ch *ir.Channel) *ChannelQueue {
	return &ChannelQueue{channel: ch}
}

// Channel returns the channel declaration.
func (q *ChannelQueue) Channel() *ir.Channel { return q.channel }

// Name returns the channel name.
func (q *ChannelQueue) Name() string { return q.channel.Name }

// Write appends v to the queue, or hands it to the consumer if one is
// attached.
//
// Returns *TypeMismatchError if v does not have the channel type and
// *CapacityExceededError if the channel is bounded and already full.
// A failed write leaves the queue unchanged.
func (q *ChannelQueue) Write(v ir.Value) error {
	if !ir.HasType(v, q.channel.Type) {
		return &TypeMismatchError{Channel: q.channel.Name, Want: q.channel.Type, Got: ir.TypeOf(v)}
	}
	if q.consumer == nil && q.channel.Bounded() && len(q.values) >= q.channel.Capacity {
		return &CapacityExceededError{Channel: q.channel.Name, Capacity: q.channel.Capacity}
	}

	q.writes++
	if q.onWrite != nil {
		q.onWrite(v)
	}
	if q.consumer != nil {
		q.consumer(v)
		return nil
	}
	q.values = append(q.values, v)
	return nil
}

// Read pops the oldest value. When the buffer is empty and a generator is
// attached, the generator's next value is returned instead. Returns false
// when no value is available.
//
// A generator value of the wrong type stops the generator; Read returns
// false and Err reports the mismatch.
func (q *ChannelQueue) Read() (ir.Value, bool) {
	if len(q.values) > 0 {
		v := q.values[0]
		q.values[0] = nil
		q.values = q.values[1:]
		q.reads++
		if q.onRead != nil {
			q.onRead(v, false)
		}
		return v, true
	}

	if q.next == nil {
		return nil, false
	}
	v, ok := q.next()
	if !ok {
		q.detachGenerator()
		return nil, false
	}
	if !ir.HasType(v, q.channel.Type) {
		q.err = &TypeMismatchError{Channel: q.channel.Name, Want: q.channel.Type, Got: ir.TypeOf(v)}
		q.detachGenerator()
		return nil, false
	}
	q.reads++
	if q.onRead != nil {
		q.onRead(v, true)
	}
	return v, true
}

// Err returns the first generator error, if any.
func (q *ChannelQueue) Err() error { return q.err }

// IsEmpty reports whether the buffer is empty. Generators are not consulted.
func (q *ChannelQueue) IsEmpty() bool { return len(q.values) == 0 }

// Size returns the number of buffered values. Generators are not consulted.
func (q *ChannelQueue) Size() int { return len(q.values) }

// Values returns a copy of the buffered values, oldest first.
func (q *ChannelQueue) Values() []ir.Value {
	out := make([]ir.Value, len(q.values))
	copy(out, q.values)
	return out
}

// WriteCount returns the number of successful writes, including writes
// taken by a consumer. Initial values are not counted.
func (q *ChannelQueue) WriteCount() int64 { return q.writes }

// ReadCount returns the number of successful reads, including generated
// values.
func (q *ChannelQueue) ReadCount() int64 { return q.reads }

// AttachGenerator binds seq as the producer of values for reads that find
// the buffer empty. seq may be finite or infinite; it is pulled lazily.
//
// Returns ErrGeneratorAttached if a generator is already attached, even if
// it has been exhausted.
func (q *ChannelQueue) AttachGenerator(seq iter.Seq[ir.Value]) error {
	if q.next != nil || q.stop != nil {
		return ErrGeneratorAttached
	}
	q.next, q.stop = iter.Pull(seq)
	return nil
}

// HasGenerator reports whether a generator was attached.
func (q *ChannelQueue) HasGenerator() bool { return q.stop != nil }

// AttachConsumer routes every subsequent write to fn instead of the buffer.
// Values already buffered stay readable.
func (q *ChannelQueue) AttachConsumer(fn func(ir.Value)) error {
	if q.consumer != nil {
		return ErrConsumerAttached
	}
	q.consumer = fn
	return nil
}

// Close releases the generator, if any.
func (q *ChannelQueue) Close() {
	if q.stop != nil {
		q.stop()
	}
	q.next = nil
}

// detachGenerator releases an exhausted generator but keeps the queue marked
// as having one, so a second AttachGenerator still fails.
func (q *ChannelQueue) detachGenerator() {
	q.stop()
	q.next = nil
}

// prime appends initial values without counting them as writes.
func (q *ChannelQueue) prime(vs []ir.Value) {
	q.values = append(q.values, vs...)
}

// FixedValueGenerator returns a finite sequence over vs.
func FixedValueGenerator(vs ...ir.Value) iter.Seq[ir.Value] {
	vs = append([]ir.Value(nil), vs...)
	return func(yield func(ir.Value) bool) {
		for _, v := range vs {
			if !yield(v) {
				return
			}
		}
	}
}
