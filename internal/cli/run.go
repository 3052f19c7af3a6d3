package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/harness"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/metrics"
	"github.com/roach88/procnet/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inputs        string           // YAML file with inputs and generators
	Mode          string           // ticks | until_output | until_blocked
	Ticks         int64            // Tick calls in ticks mode
	Outputs       map[string]int64 // per-channel write targets in until_output mode
	MaxTicks      int64
	RequireInputs bool
	Database      string // optional; records the run when set
	MetricsOut    string // optional Prometheus textfile

	// RunIDGenerator allows overriding the run ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// InputsFile is the format of the --inputs file.
//
//	inputs:       # written to the channel before the first tick
//	  in: [1, 2, 3]
//	generators:   # produced on demand when a proc receives
//	  data: [7, 8]
type InputsFile struct {
	Inputs     map[string][]any `yaml:"inputs"`
	Generators map[string][]any `yaml:"generators"`
}

// ChannelContents is the state of one queue after a run.
type ChannelContents struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
	Writes int64  `json:"writes"`
	Reads  int64  `json:"reads"`
}

// RunResult is the outcome of the run command.
type RunResult struct {
	RunID    string                    `json:"run_id"`
	Network  string                    `json:"network"`
	Mode     string                    `json:"mode"`
	Status   string                    `json:"status"`
	Ticks    int64                     `json:"ticks"`
	Rounds   int64                     `json:"rounds"`
	Channels []ChannelContents         `json:"channels"`
	State    map[string]map[string]any `json:"state,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Kind     string                    `json:"error_kind,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <network>",
		Short: "Run a network",
		Long: `Load a network and run it with one of the run-control modes.

Modes:
  until_blocked  run until a round moves no value across the network boundary (default)
  until_output   run until each --until-output channel received N writes
  ticks          run exactly --ticks rounds

Channel inputs and generators come from a YAML file given with
--inputs. With --db the run and every channel event are recorded in a
SQLite database for later trace and replay.

Example:
  procnet run ./networks/iota.cue --mode until_output --until-output iota_out=3
  procnet run ./networks/accumulator.cue --inputs inputs.yaml --db ./runs.db
  procnet run ./networks/backedge.cue --mode ticks --ticks 6 --metrics-out procnet.prom`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetwork(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Inputs, "inputs", "", "YAML file with channel inputs and generators")
	cmd.Flags().StringVar(&opts.Mode, "mode", harness.ModeUntilBlocked, "run mode (ticks|until_output|until_blocked)")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 0, "number of ticks in ticks mode")
	cmd.Flags().StringToInt64Var(&opts.Outputs, "until-output", nil, "channel=count write targets in until_output mode")
	cmd.Flags().Int64Var(&opts.MaxTicks, "max-ticks", 0, "tick ceiling for until_output and until_blocked (0 = none)")
	cmd.Flags().BoolVar(&opts.RequireInputs, "require-inputs", false, "fail when a read input channel has no values or generator")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this textfile")

	return cmd
}

func runNetwork(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	spec := harness.RunSpec{
		Mode:     opts.Mode,
		Ticks:    opts.Ticks,
		Outputs:  opts.Outputs,
		MaxTicks: opts.MaxTicks,
	}
	if err := spec.Validate(); err != nil {
		_ = formatter.Error(compiler.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid run flags", err)
	}

	inputs, err := readInputsFile(opts.Inputs)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInputs, "failed to read inputs", err)
	}

	n, err := loadNetwork(formatter, path)
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.RunIDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDGenerator))
	}
	if opts.RequireInputs {
		engineOpts = append(engineOpts, engine.WithRequireInputs(), suppliedInputs(inputs.Inputs))
	}

	generators, err := generatorOptions(n, inputs.Generators)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInputs, "invalid generators", err)
	}
	engineOpts = append(engineOpts, generators...)

	var registry *prometheus.Registry
	if opts.MetricsOut != "" {
		registry = prometheus.NewRegistry()
		m, err := metrics.New(registry)
		if err != nil {
			return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, "failed to register metrics", err)
		}
		engineOpts = append(engineOpts, engine.WithMetrics(m))
	}

	var st *store.Store
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(store.NewRunRecorder(ctx, st)))
	}

	eng, err := engine.New(n, engineOpts...)
	if err != nil {
		var netErr *engine.NetworkError
		if errors.As(err, &netErr) {
			return outputValidationErrors(formatter, netErr.Errors)
		}
		return formatter.Fail(ExitCommandError, errorCode(err), "failed to create engine", err)
	}
	defer eng.Close()

	if st != nil {
		if err := st.BeginRun(ctx, eng, path); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to record run", err)
		}
	}

	if err := writeInputs(eng, inputs.Inputs); err != nil {
		if st != nil {
			_ = st.EndRun(ctx, eng, store.StatusFailed, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeInputs, "failed to write inputs", err)
	}

	logger.Info("run starting", "network", n.Name, "run_id", eng.RunID(), "mode", spec.Mode)
	runErr := harness.Execute(ctx, eng, spec)

	status := store.StatusOf(runErr)
	if runErr == nil && spec.Mode == harness.ModeUntilBlocked {
		status = store.StatusBlocked
	}
	logger.Info("run finished",
		"run_id", eng.RunID(),
		"status", status,
		"ticks", eng.Ticks(),
		"rounds", eng.Rounds(),
	)

	if st != nil {
		// The run context may be cancelled; finishing the record must not be.
		if err := st.EndRun(context.WithoutCancel(ctx), eng, status, runErr); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to finish run record", err)
		}
	}

	if registry != nil {
		if err := metrics.WriteTextfile(opts.MetricsOut, registry); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write metrics", err)
		}
		formatter.VerboseLog("Wrote metrics to %s", opts.MetricsOut)
	}

	result := buildRunResult(eng, spec.Mode, status, runErr)
	if err := outputRunResult(formatter, result, runErr); err != nil {
		return err
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return nil
}

// readInputsFile parses the --inputs file. An empty path yields no inputs.
func readInputsFile(path string) (*InputsFile, error) {
	if path == "" {
		return &InputsFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f InputsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for ch := range f.Generators {
		if _, ok := f.Inputs[ch]; ok {
			return nil, fmt.Errorf("channel %s has both inputs and a generator", ch)
		}
	}
	return &f, nil
}

// generatorOptions converts generator values into engine options, in
// channel declaration order.
func generatorOptions(n *ir.Network, generators map[string][]any) ([]engine.Option, error) {
	for name := range generators {
		if _, ok := n.Channel(name); !ok {
			return nil, fmt.Errorf("%w: %q", engine.ErrUnknownChannel, name)
		}
	}
	var opts []engine.Option
	for _, ch := range n.Channels {
		raw, ok := generators[ch.Name]
		if !ok {
			continue
		}
		values, err := harness.ConvertValues(ch, raw)
		if err != nil {
			return nil, fmt.Errorf("generator %s: %w", ch.Name, err)
		}
		opts = append(opts, engine.WithGenerator(ch.Name, engine.FixedValueGenerator(values...)))
	}
	return opts, nil
}

// suppliedInputs names the channels writeInputs fills with at least one
// value.
func suppliedInputs(inputs map[string][]any) engine.Option {
	var channels []string
	for name, values := range inputs {
		if len(values) > 0 {
			channels = append(channels, name)
		}
	}
	return engine.WithSuppliedInputs(channels...)
}

// writeInputs writes input values channel by channel in declaration order.
func writeInputs(eng *engine.Engine, inputs map[string][]any) error {
	n := eng.Network()
	for name := range inputs {
		if _, ok := n.Channel(name); !ok {
			return fmt.Errorf("%w: %q", engine.ErrUnknownChannel, name)
		}
	}
	for _, ch := range n.Channels {
		raw, ok := inputs[ch.Name]
		if !ok {
			continue
		}
		values, err := harness.ConvertValues(ch, raw)
		if err != nil {
			return fmt.Errorf("input %s: %w", ch.Name, err)
		}
		q := eng.Queues().MustQueue(ch.Name)
		for i, v := range values {
			if err := q.Write(v); err != nil {
				return fmt.Errorf("input %s[%d]: %w", ch.Name, i, err)
			}
		}
	}
	return nil
}

func buildRunResult(eng *engine.Engine, mode string, status store.RunStatus, runErr error) RunResult {
	result := RunResult{
		RunID:   eng.RunID(),
		Network: eng.Network().Name,
		Mode:    mode,
		Status:  string(status),
		Ticks:   eng.Ticks(),
		Rounds:  eng.Rounds(),
		State:   make(map[string]map[string]any),
	}
	for _, q := range eng.Queues().Queues() {
		values := q.Values()
		native := make([]any, len(values))
		for i, v := range values {
			native[i] = ir.ToNative(v)
		}
		result.Channels = append(result.Channels, ChannelContents{
			Name:   q.Name(),
			Values: native,
			Writes: q.WriteCount(),
			Reads:  q.ReadCount(),
		})
	}
	for _, p := range eng.Network().Procs {
		state, err := eng.ProcState(p.Name)
		if err != nil || len(state) == 0 {
			continue
		}
		native := make(map[string]any, len(state))
		for k, v := range state {
			native[k] = ir.ToNative(v)
		}
		result.State[p.Name] = native
	}
	if runErr != nil {
		result.Error = runErr.Error()
		result.Kind = harness.ErrorKind(runErr)
	}
	return result
}

// outputRunResult prints the run outcome.
func outputRunResult(formatter *OutputFormatter, result RunResult, runErr error) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if runErr != nil {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    runErrorCode(runErr),
				Message: runErr.Error(),
				Details: result.Kind,
			}
		}
		return formatter.Response(response)
	}

	w := formatter.Writer
	if runErr != nil {
		fmt.Fprintf(w, "✗ Run %s %s after %d tick(s), %d round(s)\n", result.RunID, result.Status, result.Ticks, result.Rounds)
		fmt.Fprintf(w, "  %s: %s\n", result.Kind, result.Error)
	} else {
		fmt.Fprintf(w, "✓ Run %s %s after %d tick(s), %d round(s)\n", result.RunID, result.Status, result.Ticks, result.Rounds)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Channels:")
	for _, ch := range result.Channels {
		fmt.Fprintf(w, "  %s: %v (writes %d, reads %d)\n", ch.Name, ch.Values, ch.Writes, ch.Reads)
	}

	if formatter.Verbose && len(result.State) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "State:")
		for _, p := range sortedKeys(result.State) {
			fmt.Fprintf(w, "  %s: %s\n", p, formatArgs(result.State[p]))
		}
	}
	return nil
}

// runErrorCode maps an engine run error to a CLI error code.
func runErrorCode(err error) string {
	var rtErr *engine.RuntimeError
	if errors.As(err, &rtErr) {
		return string(rtErr.Code)
	}
	return ErrCodeRunFailed
}
