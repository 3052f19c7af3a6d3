package engine

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/testutil"
)

func u32(v uint64) ir.Value { return ir.UBits(v, 32) }

func u32s(vs ...uint64) []ir.Value {
	out := make([]ir.Value, len(vs))
	for i, v := range vs {
		out[i] = u32(v)
	}
	return out
}

func newTestQueue(capacity int) *ChannelQueue {
	return NewChannelQueue(&ir.Channel{
		Name:     "ch",
		Ops:      ir.SendReceive,
		Type:     ir.BitsType{Width: 32},
		Capacity: capacity,
	})
}

func TestChannelQueue_FIFO(t *testing.T) {
	q := newTestQueue(0)
	assert.True(t, q.IsEmpty())

	for _, v := range u32s(1, 2, 3) {
		require.NoError(t, q.Write(v))
	}
	assert.Equal(t, 3, q.Size())
	assert.Equal(t, u32s(1, 2, 3), q.Values())

	for _, want := range u32s(1, 2, 3) {
		got, ok := q.Read()
		require.True(t, ok)
		assert.True(t, ir.Equal(want, got), "got %s, want %s", got, want)
	}
	_, ok := q.Read()
	assert.False(t, ok, "empty queue without generator yields nothing")
	assert.True(t, q.IsEmpty())
	assert.Equal(t, int64(3), q.WriteCount())
	assert.Equal(t, int64(3), q.ReadCount())
}

func TestChannelQueue_CapacityExceeded(t *testing.T) {
	q := newTestQueue(2)
	require.NoError(t, q.Write(u32(1)))
	require.NoError(t, q.Write(u32(2)))

	err := q.Write(u32(3))
	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))
	var ce *CapacityExceededError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ch", ce.Channel)
	assert.Equal(t, 2, ce.Capacity)

	assert.Equal(t, 2, q.Size(), "failed write leaves the queue unchanged")
	assert.Equal(t, int64(2), q.WriteCount())

	_, ok := q.Read()
	require.True(t, ok)
	assert.NoError(t, q.Write(u32(3)), "space freed by a read")
}

func TestChannelQueue_TypeMismatch(t *testing.T) {
	q := newTestQueue(0)
	err := q.Write(ir.UBits(1, 8))

	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, "bits[32]", tm.Want.String())
	assert.Equal(t, "bits[8]", tm.Got.String())
	assert.True(t, q.IsEmpty())
}

func TestChannelQueue_Generator(t *testing.T) {
	q := newTestQueue(0)
	require.NoError(t, q.AttachGenerator(FixedValueGenerator(u32s(10, 20)...)))
	assert.True(t, q.HasGenerator())
	assert.True(t, q.IsEmpty(), "generators are not buffered values")

	// Buffered values go first.
	require.NoError(t, q.Write(u32(1)))

	var got []ir.Value
	for {
		v, ok := q.Read()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, u32s(1, 10, 20), got)
	assert.NoError(t, q.Err())
	assert.Equal(t, int64(3), q.ReadCount())

	err := q.AttachGenerator(FixedValueGenerator(u32(30)))
	assert.ErrorIs(t, err, ErrGeneratorAttached, "exhausted generators still count as attached")
}

func TestChannelQueue_GeneratorIsLazy(t *testing.T) {
	pulled := 0
	var seq iter.Seq[ir.Value] = func(yield func(ir.Value) bool) {
		for i := uint64(0); ; i++ {
			pulled++
			if !yield(u32(i)) {
				return
			}
		}
	}

	q := newTestQueue(0)
	require.NoError(t, q.AttachGenerator(seq))
	assert.Equal(t, 0, pulled)

	for i := uint64(0); i < 5; i++ {
		v, ok := q.Read()
		require.True(t, ok)
		assert.True(t, ir.Equal(u32(i), v))
	}
	assert.Equal(t, 5, pulled)
	q.Close()
}

func TestChannelQueue_GeneratorTypeError(t *testing.T) {
	q := newTestQueue(0)
	require.NoError(t, q.AttachGenerator(FixedValueGenerator(u32(1), ir.UBits(2, 8), u32(3))))

	_, ok := q.Read()
	require.True(t, ok)
	_, ok = q.Read()
	assert.False(t, ok)

	var tm *TypeMismatchError
	require.ErrorAs(t, q.Err(), &tm)
	assert.Equal(t, "ch", tm.Channel)

	_, ok = q.Read()
	assert.False(t, ok, "generator is stopped after a bad value")
}

func TestChannelQueue_Consumer(t *testing.T) {
	q := newTestQueue(1)
	require.NoError(t, q.Write(u32(1)))

	var consumed []ir.Value
	require.NoError(t, q.AttachConsumer(func(v ir.Value) { consumed = append(consumed, v) }))
	assert.ErrorIs(t, q.AttachConsumer(func(ir.Value) {}), ErrConsumerAttached)

	// The consumer takes writes even though the buffer is at capacity.
	require.NoError(t, q.Write(u32(2)))
	require.NoError(t, q.Write(u32(3)))

	assert.Equal(t, u32s(2, 3), consumed)
	assert.Equal(t, u32s(1), q.Values())
	assert.Equal(t, int64(3), q.WriteCount())
}

func TestFixedValueGenerator_CopiesInput(t *testing.T) {
	vs := u32s(1, 2)
	seq := FixedValueGenerator(vs...)
	vs[0] = u32(99)

	var got []ir.Value
	for v := range seq {
		got = append(got, v)
	}
	assert.Equal(t, u32s(1, 2), got)
}

func TestQueueManager_InitialValues(t *testing.T) {
	n := testutil.BackedgeNetwork(42, 55, 100)
	qm := NewQueueManager(n)

	queues := qm.Queues()
	require.Len(t, queues, 2)
	assert.Equal(t, "backedge", queues[0].Name())
	assert.Equal(t, "out", queues[1].Name())

	backedge := qm.MustQueue("backedge")
	assert.Equal(t, u32s(42, 55, 100), backedge.Values())
	assert.Equal(t, int64(0), backedge.WriteCount(), "initial values are not writes")
}

func TestQueueManager_UnknownChannel(t *testing.T) {
	qm := NewQueueManager(testutil.IotaNetwork(0, 1))

	_, err := qm.Queue("nope")
	assert.True(t, errors.Is(err, ErrUnknownChannel))
	assert.Panics(t, func() { qm.MustQueue("nope") })
}
