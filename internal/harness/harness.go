package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/store"
	"github.com/roach88/procnet/internal/testutil"
)

// Harness is the scenario execution context.
// It runs one scenario with a deterministic clock and run ID.
type Harness struct {
	store   *store.Store
	network *ir.Network
	engine  *engine.Engine
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
}

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the run. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible traces.
//
// Execution flow:
// 1. Load the network and create the engine
// 2. Write inputs and attach generators
// 3. Run the selected run-control operation
// 4. Record the outcome and, if requested, replay the run
// 5. Check expectations and assertions
//
// A returned error means the scenario could not be executed. Expectation
// and assertion failures are reported in Result.Errors instead.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	n, err := compiler.LoadNetwork(scenario.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		network: n,
		clock:   testutil.NewDeterministicClock(),
		logger:  cfg.logger,
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	generators, err := h.generatorOptions(scenario.Generators)
	if err != nil {
		return nil, err
	}

	opts := append([]engine.Option{
		engine.WithLogger(h.logger),
		engine.WithClock(h.clock),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator("scenario-" + scenario.Name)),
		engine.WithRecorder(store.NewRunRecorder(ctx, h.store)),
	}, generators...)

	eng, err := engine.New(h.network, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()
	h.engine = eng

	if err := h.store.BeginRun(ctx, eng, scenario.Network); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Scenario = scenario.Name
	result.RunID = eng.RunID()

	if err := h.writeInputs(scenario.Inputs); err != nil {
		return nil, err
	}

	runErr := Execute(ctx, eng, scenario.Run)
	result.Ticks = eng.Ticks()
	result.Rounds = eng.Rounds()
	if runErr != nil {
		result.Error = runErr.Error()
		result.ErrorKind = ErrorKind(runErr)
	}

	status := store.StatusOf(runErr)
	if runErr == nil && scenario.Run.Mode == ModeUntilBlocked {
		status = store.StatusBlocked
	}
	if err := h.store.EndRun(ctx, eng, status, runErr); err != nil {
		return nil, err
	}

	if result.Trace, err = h.store.ReadEvents(ctx, eng.RunID()); err != nil {
		return nil, err
	}
	h.snapshot(result)

	h.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"ticks", result.Ticks,
		"rounds", result.Rounds,
		"events", len(result.Trace),
		"error_kind", result.ErrorKind,
	)

	checkExpect(result, scenario.Expect)

	if scenario.Replay {
		h.checkReplay(ctx, result)
	}

	actx := &AssertionContext{
		Store:   h.store,
		Network: h.network,
		Ctx:     ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// Execute runs eng with the run-control operation spec selects.
func Execute(ctx context.Context, eng *engine.Engine, spec RunSpec) error {
	var tickOpts []engine.TickOption
	if spec.MaxTicks > 0 {
		tickOpts = append(tickOpts, engine.WithMaxTicks(spec.MaxTicks))
	}

	switch spec.Mode {
	case ModeTicks:
		for i := int64(0); i < spec.Ticks; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := eng.Tick(); err != nil {
				return err
			}
		}
		return nil
	case ModeUntilOutput:
		_, err := eng.TickUntilOutput(ctx, spec.Outputs, tickOpts...)
		return err
	case ModeUntilBlocked:
		_, err := eng.TickUntilBlocked(ctx, tickOpts...)
		return err
	}
	return fmt.Errorf("unknown run mode %q", spec.Mode)
}

// generatorOptions converts scenario generators into engine options.
// Channels are visited in declaration order so runs stay deterministic.
func (h *Harness) generatorOptions(generators map[string][]any) ([]engine.Option, error) {
	var opts []engine.Option
	for _, ch := range h.network.Channels {
		raw, ok := generators[ch.Name]
		if !ok {
			continue
		}
		values, err := ConvertValues(ch, raw)
		if err != nil {
			return nil, fmt.Errorf("generator %s: %w", ch.Name, err)
		}
		opts = append(opts, engine.WithGenerator(ch.Name, engine.FixedValueGenerator(values...)))
	}
	for name := range generators {
		if _, ok := h.network.Channel(name); !ok {
			return nil, fmt.Errorf("generator: %w: %q", engine.ErrUnknownChannel, name)
		}
	}
	return opts, nil
}

// writeInputs writes scenario inputs, channel by channel in declaration order.
func (h *Harness) writeInputs(inputs map[string][]any) error {
	for name := range inputs {
		if _, ok := h.network.Channel(name); !ok {
			return fmt.Errorf("input: %w: %q", engine.ErrUnknownChannel, name)
		}
	}
	for _, ch := range h.network.Channels {
		raw, ok := inputs[ch.Name]
		if !ok {
			continue
		}
		values, err := ConvertValues(ch, raw)
		if err != nil {
			return fmt.Errorf("input %s: %w", ch.Name, err)
		}
		q := h.engine.Queues().MustQueue(ch.Name)
		for i, v := range values {
			if err := q.Write(v); err != nil {
				return fmt.Errorf("input %s[%d]: %w", ch.Name, i, err)
			}
		}
	}
	return nil
}

// snapshot copies queue contents and proc state into the result.
func (h *Harness) snapshot(result *Result) {
	for _, q := range h.engine.Queues().Queues() {
		values := q.Values()
		native := make([]any, len(values))
		for i, v := range values {
			native[i] = ir.ToNative(v)
		}
		result.Outputs[q.Name()] = native
	}
	for _, p := range h.network.Procs {
		state, err := h.engine.ProcState(p.Name)
		if err != nil {
			continue
		}
		native := make(map[string]any, len(state))
		for k, v := range state {
			native[k] = ir.ToNative(v)
		}
		result.State[p.Name] = native
	}
}

// checkReplay replays the stored run and records a mismatch as a failure.
// The replay reuses the run's clock, rewound, so both passes number events
// from 1.
func (h *Harness) checkReplay(ctx context.Context, result *Result) {
	issued := h.clock.Rewind()
	h.logger.Debug("replaying scenario", "run_id", result.RunID, "events", issued)
	replay, err := h.store.ReplayRun(ctx, result.RunID, h.network,
		engine.WithLogger(h.logger),
		engine.WithClock(h.clock),
	)
	if err != nil {
		result.AddError(fmt.Sprintf("replay failed: %v", err))
		return
	}
	if !replay.Match() {
		result.AddError(fmt.Sprintf("replay diverged: recorded trace %s, replayed %s",
			replay.RecordedHash, replay.ReplayHash))
	}
	// Deadlock and deadline errors come from run control, not from a round,
	// so only the other kinds are expected to recur on replay.
	failed := result.ErrorKind != "" && result.ErrorKind != KindDeadlock && result.ErrorKind != KindDeadlineExceeded
	switch {
	case replay.Err != nil && !failed:
		result.AddError(fmt.Sprintf("replay failed in round %d: %v", replay.Rounds, replay.Err))
	case replay.Err == nil && failed:
		result.AddError(fmt.Sprintf("replay ended without the recorded %s error", result.ErrorKind))
	}
}

// checkExpect compares the run outcome with the expect clause.
func checkExpect(result *Result, expect ExpectClause) {
	if result.ErrorKind != expect.Error {
		switch {
		case expect.Error == "":
			result.AddError(fmt.Sprintf("unexpected error: %s", result.Error))
		case result.ErrorKind == "":
			result.AddError(fmt.Sprintf("expected %s error, run ended without error", expect.Error))
		default:
			result.AddError(fmt.Sprintf("expected %s error, got %s: %s", expect.Error, result.ErrorKind, result.Error))
		}
	}
	if expect.Ticks != nil && *expect.Ticks != result.Ticks {
		result.AddError(fmt.Sprintf("expected %d ticks, got %d", *expect.Ticks, result.Ticks))
	}
}

// ConvertValues converts YAML values into values of the channel type.
func ConvertValues(ch *ir.Channel, raw []any) ([]ir.Value, error) {
	values := make([]ir.Value, len(raw))
	for i, x := range raw {
		v, err := ir.FromNative(ch.Type, x)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
