package engine

import (
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// QueueManager owns the queues of one network, one per channel, in channel
// declaration order. Each Engine has its own manager.
type QueueManager struct {
	queues []*ChannelQueue
	byName map[string]*ChannelQueue
}

// NewQueueManager creates a queue per channel of n and pre-populates the
// initial values.
func NewQueueManager(n *ir.Network) *QueueManager {
	qm := &QueueManager{
		queues: make([]*ChannelQueue, 0, len(n.Channels)),
		byName: make(map[string]*ChannelQueue, len(n.Channels)),
	}
	for _, ch := range n.Channels {
		q := NewChannelQueue(ch)
		q.prime(ch.InitialValues)
		qm.queues = append(qm.queues, q)
		qm.byName[ch.Name] = q
	}
	return qm
}

// Queue returns the queue of the named channel.
func (m *QueueManager) Queue(name string) (*ChannelQueue, error) {
	q, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return q, nil
}

// MustQueue is like Queue but panics for unknown channels.
// Intended for tests and examples.
func (m *QueueManager) MustQueue(name string) *ChannelQueue {
	q, err := m.Queue(name)
	if err != nil {
		panic(err)
	}
	return q
}

// Queues returns all queues in channel declaration order.
func (m *QueueManager) Queues() []*ChannelQueue {
	out := make([]*ChannelQueue, len(m.queues))
	copy(out, m.queues)
	return out
}

// Close releases every attached generator.
func (m *QueueManager) Close() {
	for _, q := range m.queues {
		q.Close()
	}
}
