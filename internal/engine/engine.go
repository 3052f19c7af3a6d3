package engine

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/ir"
)

// Engine is one interpreter session over a network.
//
// It owns the network's queues and the runtime state of every proc. The
// network itself is never modified.
//
// Thread-safety model:
//   - All methods must be called from one goroutine at a time
//   - Separate engines share nothing and may run in parallel
//
// INVARIANTS:
//   - runners are in proc declaration order and never reordered
//   - a proc's saved state only changes when one of its ticks completes
type Engine struct {
	network *ir.Network
	queues  *QueueManager
	runners []*procRunner

	logger   *slog.Logger
	metrics  Metrics
	recorder Recorder
	clock    EventClock
	runIDGen RunIDGenerator
	runID    string

	generators    []pendingGenerator
	requireInputs bool
	supplied      map[string]bool // channels the caller fills before ticking

	ticks    int64 // rounds that made progress
	rounds   int64 // all rounds
	boundary int   // boundary events in the current round

	current   string // proc being stepped, empty outside a round
	recordErr error  // first recorder failure
}

type pendingGenerator struct {
	channel string
	seq     iter.Seq[ir.Value]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics reports round and channel activity to m.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRecorder sends every channel event to r. May be given more than once.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if e.recorder == nil {
			e.recorder = r
			return
		}
		if m, ok := e.recorder.(multiRecorder); ok {
			e.recorder = append(m, r)
			return
		}
		e.recorder = multiRecorder{e.recorder, r}
	}
}

// WithGenerator attaches seq as the generator of the named channel when the
// engine is created.
func WithGenerator(channel string, seq iter.Seq[ir.Value]) Option {
	return func(e *Engine) {
		e.generators = append(e.generators, pendingGenerator{channel: channel, seq: seq})
	}
}

// WithRequireInputs makes New fail when a receive_only channel read by a
// proc has no initial values, no generator from WithGenerator and is not
// named by WithSuppliedInputs.
func WithRequireInputs() Option {
	return func(e *Engine) {
		e.requireInputs = true
	}
}

// WithSuppliedInputs names channels the caller writes before the first
// tick. WithRequireInputs treats them as having values.
func WithSuppliedInputs(channels ...string) Option {
	return func(e *Engine) {
		if e.supplied == nil {
			e.supplied = make(map[string]bool)
		}
		for _, ch := range channels {
			e.supplied[ch] = true
		}
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDGen = g
	}
}

// WithClock sets the clock stamping channel events. Default: NewClock().
func WithClock(c EventClock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine for n.
//
// The network is validated first; a network with validation errors yields
// a *NetworkError and no engine. Initial channel values are queued and
// generators attached before New returns.
func New(n *ir.Network, opts ...Option) (*Engine, error) {
	if errs := compiler.ValidateNetwork(n); len(errs) > 0 {
		return nil, &NetworkError{Network: n.Name, Errors: errs}
	}

	e := &Engine{
		network:  n,
		queues:   NewQueueManager(n),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:  nopMetrics{},
		clock:    NewClock(),
		runIDGen: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.runID = e.runIDGen.Generate()

	for _, p := range n.Procs {
		r, err := newProcRunner(p)
		if err != nil {
			return nil, &NetworkError{Network: n.Name, Errors: []compiler.ValidationError{{
				Field:   "proc." + p.Name,
				Message: err.Error(),
				Code:    compiler.ErrDataflowCycle,
			}}}
		}
		e.runners = append(e.runners, r)
	}

	if err := attachGenerators(e.queues, e.generators); err != nil {
		return nil, err
	}

	if e.requireInputs {
		if errs := e.missingInputs(); len(errs) > 0 {
			e.queues.Close()
			return nil, &NetworkError{Network: n.Name, Errors: errs}
		}
	}

	for _, q := range e.queues.Queues() {
		e.hook(q)
	}

	e.logger.Debug("engine created",
		"network", n.Name,
		"run_id", e.runID,
		"channels", len(n.Channels),
		"procs", len(n.Procs),
	)
	return e, nil
}

// attachGenerators binds every pending generator to its queue. On failure
// the generators already attached are released.
func attachGenerators(qm *QueueManager, gens []pendingGenerator) error {
	for _, g := range gens {
		q, err := qm.Queue(g.channel)
		if err == nil {
			err = q.AttachGenerator(g.seq)
		}
		if err != nil {
			qm.Close()
			return fmt.Errorf("attach generator to %s: %w", g.channel, err)
		}
	}
	return nil
}

// missingInputs lists receive_only channels that some proc reads but that
// can never hold a value.
func (e *Engine) missingInputs() []compiler.ValidationError {
	var errs []compiler.ValidationError
	for _, q := range e.queues.Queues() {
		ch := q.Channel()
		if ch.Ops != ir.ReceiveOnly || len(ch.InitialValues) > 0 || q.HasGenerator() || e.supplied[ch.Name] {
			continue
		}
		if !e.isRead(ch.Name) {
			continue
		}
		errs = append(errs, compiler.ValidationError{
			Field:   "channel." + ch.Name,
			Message: "receive_only channel has no generator and no initial values",
			Code:    compiler.ErrMissingInput,
		})
	}
	return errs
}

func (e *Engine) isRead(channel string) bool {
	for _, p := range e.network.Procs {
		for _, node := range p.Nodes {
			if rcv, ok := node.Op.(ir.Receive); ok && rcv.Channel == channel {
				return true
			}
		}
	}
	return false
}

// hook wires a queue's write and read callbacks to the recorder and metrics.
//
// Events crossing the network boundary are also counted for the current
// round: writes to send_only channels or to an attached consumer, reads
// from receive_only channels and generator pulls.
func (e *Engine) hook(q *ChannelQueue) {
	name := q.Name()
	ops := q.Channel().Ops
	q.onWrite = func(v ir.Value) {
		e.observe(EventWrite, name, v, false)
		if ops == ir.SendOnly || q.consumer != nil {
			e.boundary++
		}
	}
	q.onRead = func(v ir.Value, generated bool) {
		e.observe(EventRead, name, v, generated)
		if ops == ir.ReceiveOnly || generated {
			e.boundary++
		}
	}
}

func (e *Engine) observe(kind EventKind, channel string, v ir.Value, generated bool) {
	seq := e.clock.Next()
	e.metrics.ObserveEvent(e.network.Name, channel, kind)
	e.logger.Debug("channel event",
		"kind", kind,
		"channel", channel,
		"proc", e.current,
		"seq", seq,
		"value", v.String(),
	)
	if e.recorder == nil || e.recordErr != nil {
		return
	}
	err := e.recorder.RecordEvent(ChannelEvent{
		RunID:     e.runID,
		Seq:       seq,
		Round:     e.rounds,
		Kind:      kind,
		Channel:   channel,
		Proc:      e.current,
		Value:     v,
		Generated: generated,
	})
	if err != nil {
		e.recordErr = fmt.Errorf("record %s on %s: %w", kind, channel, err)
	}
}

// Network returns the network being interpreted.
func (e *Engine) Network() *ir.Network { return e.network }

// RunID returns the identifier of this session.
func (e *Engine) RunID() string { return e.runID }

// Queues returns the session's queue manager.
func (e *Engine) Queues() *QueueManager { return e.queues }

// Queue returns the queue of the named channel.
func (e *Engine) Queue(name string) (*ChannelQueue, error) { return e.queues.Queue(name) }

// Ticks returns the number of rounds that made progress.
func (e *Engine) Ticks() int64 { return e.ticks }

// Rounds returns the number of rounds run, including rounds that made no
// progress.
func (e *Engine) Rounds() int64 { return e.rounds }

// ProcState returns the saved state of the named proc, keyed by element.
func (e *Engine) ProcState(proc string) (map[string]ir.Value, error) {
	for _, r := range e.runners {
		if r.proc.Name == proc {
			return r.snapshot(), nil
		}
	}
	return nil, fmt.Errorf("unknown proc %q", proc)
}

// ProcTicks returns the number of completed ticks of the named proc.
func (e *Engine) ProcTicks(proc string) (int64, error) {
	for _, r := range e.runners {
		if r.proc.Name == proc {
			return r.ticks, nil
		}
	}
	return 0, fmt.Errorf("unknown proc %q", proc)
}

// Close releases generators. The engine must not be ticked afterwards.
func (e *Engine) Close() {
	e.queues.Close()
}

// roundResult is the outcome of one scheduler round.
type roundResult struct {
	progress  bool
	completed int
	blocked   map[string]string // proc -> channel
	boundary  int               // events crossing the network boundary
}

// round attempts one tick of every proc.
//
// Procs are swept in declaration order. Procs that have not completed are
// swept again while the previous sweep made progress. A proc completes at
// most one tick per round.
func (e *Engine) round() (roundResult, error) {
	e.rounds++
	e.boundary = 0
	res := roundResult{blocked: make(map[string]string)}
	done := make([]bool, len(e.runners))

	for {
		swept := false
		for i, r := range e.runners {
			if done[i] {
				continue
			}
			e.current = r.proc.Name
			out, err := r.step(e.queues)
			e.current = ""
			if err != nil {
				return res, err
			}
			if e.recordErr != nil {
				return res, e.recordErr
			}
			if out.progress {
				swept = true
				res.progress = true
			}
			if out.completed {
				done[i] = true
				res.completed++
				delete(res.blocked, r.proc.Name)
				continue
			}
			res.blocked[r.proc.Name] = out.blockedOn
		}
		if !swept || res.completed == len(e.runners) {
			break
		}
	}

	res.boundary = e.boundary
	if res.progress {
		e.ticks++
	}
	e.metrics.ObserveRound(e.network.Name, res.completed, len(res.blocked), res.progress)
	e.logger.Debug("round finished",
		"network", e.network.Name,
		"round", e.rounds,
		"progress", res.progress,
		"completed", res.completed,
		"blocked", len(res.blocked),
		"boundary", res.boundary,
	)
	return res, nil
}

// deadlock builds the error for a round that made no progress.
func (e *Engine) deadlock(res roundResult) *DeadlockError {
	de := &DeadlockError{Round: e.rounds}
	for proc, ch := range res.blocked {
		de.Procs = append(de.Procs, proc)
		if !slices.Contains(de.Channels, ch) {
			de.Channels = append(de.Channels, ch)
		}
	}
	slices.Sort(de.Procs)
	slices.Sort(de.Channels)

	e.metrics.ObserveDeadlock(e.network.Name)
	e.logger.Warn("proc network deadlocked",
		"network", e.network.Name,
		"round", e.rounds,
		"channels", de.Channels,
		"procs", de.Procs,
	)
	return de
}
