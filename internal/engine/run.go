package engine

import (
	"context"
	"fmt"
	"slices"
)

// TickOption configures one run-control call.
type TickOption func(*tickConfig)

type tickConfig struct {
	maxTicks int64
}

// WithMaxTicks bounds the number of rounds a call may run. Needing more
// fails with *DeadlineExceededError. Zero or negative means no bound.
func WithMaxTicks(n int64) TickOption {
	return func(c *tickConfig) {
		if n > 0 {
			c.maxTicks = n
		}
	}
}

func newTickConfig(opts []TickOption) tickConfig {
	var c tickConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Tick runs exactly one round.
//
// Returns *DeadlockError when no proc makes progress and at least one proc
// is blocked. A network without procs ticks without error.
func (e *Engine) Tick() error {
	res, err := e.round()
	if err != nil {
		return err
	}
	if !res.progress && len(res.blocked) > 0 {
		return e.deadlock(res)
	}
	return nil
}

// TickUntilOutput runs rounds until every target channel has received at
// least the requested number of writes since the call began. Values already
// queued when the call starts do not count.
//
// Returns the number of rounds run. Fails with *DeadlockError when a round
// makes no progress before the targets are met, with *DeadlineExceededError
// when WithMaxTicks is exceeded and with ctx.Err() when ctx is done. Targets
// naming unknown channels, or channels no proc can send on, are rejected
// before any round runs.
func (e *Engine) TickUntilOutput(ctx context.Context, targets map[string]int64, opts ...TickOption) (int64, error) {
	cfg := newTickConfig(opts)

	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	slices.Sort(names)

	baseline := make(map[string]int64, len(targets))
	queues := make(map[string]*ChannelQueue, len(targets))
	for _, name := range names {
		q, err := e.queues.Queue(name)
		if err != nil {
			return 0, err
		}
		if !q.Channel().Ops.CanSend() {
			return 0, fmt.Errorf("channel %s is %s: procs cannot send on it", name, q.Channel().Ops)
		}
		if targets[name] < 0 {
			return 0, fmt.Errorf("channel %s: negative output count %d", name, targets[name])
		}
		queues[name] = q
		baseline[name] = q.WriteCount()
	}

	satisfied := func() bool {
		for _, name := range names {
			if queues[name].WriteCount()-baseline[name] < targets[name] {
				return false
			}
		}
		return true
	}

	budget := newTickBudget(cfg.maxTicks)
	for !satisfied() {
		if err := ctx.Err(); err != nil {
			return budget.Used(), err
		}
		if err := budget.Check(); err != nil {
			return budget.Used(), err
		}
		res, err := e.round()
		if err != nil {
			return budget.Used(), err
		}
		budget.Spend()
		if !res.progress {
			return budget.Used(), e.deadlock(res)
		}
	}

	e.logger.Debug("output targets reached",
		"network", e.network.Name,
		"ticks", budget.Used(),
	)
	return budget.Used(), nil
}

// TickUntilBlocked runs rounds until a round has no external side effect:
// no value written to a send_only channel or a consumer, read from a
// receive_only channel or pulled from a generator. It returns the number
// of rounds that had one. Stopping is not an error: the caller decides
// whether a blocked network is expected.
//
// Procs that only talk to each other, or touch no channel at all, stop on
// the first round; use Tick or TickUntilOutput to drive them.
//
// Fails with *DeadlineExceededError when WithMaxTicks is exceeded and with
// ctx.Err() when ctx is done. Without WithMaxTicks a network that keeps
// exchanging values with the caller runs until ctx is cancelled.
func (e *Engine) TickUntilBlocked(ctx context.Context, opts ...TickOption) (int64, error) {
	cfg := newTickConfig(opts)
	budget := newTickBudget(cfg.maxTicks)

	for {
		if err := ctx.Err(); err != nil {
			return budget.Used(), err
		}
		if err := budget.Check(); err != nil {
			return budget.Used(), err
		}
		res, err := e.round()
		if err != nil {
			return budget.Used(), err
		}
		if res.boundary == 0 {
			e.logger.Debug("network blocked",
				"network", e.network.Name,
				"ticks", budget.Used(),
				"progress", res.progress,
				"blocked", len(res.blocked),
			)
			return budget.Used(), nil
		}
		budget.Spend()
	}
}
