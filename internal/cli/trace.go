package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - lists runs when empty
	Network  string // optional - filter run list by network
	Channel  string // optional - filter to one channel
	Kind     string // optional - "write" or "read"
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Round     int64  `json:"round"`
	Kind      string `json:"kind"` // "write" or "read"
	Channel   string `json:"channel"`
	Proc      string `json:"proc,omitempty"`
	Value     any    `json:"value"`
	Generated bool   `json:"generated,omitempty"`
}

// RunSummary describes one recorded run.
type RunSummary struct {
	ID          string `json:"id"`
	Network     string `json:"network"`
	NetworkHash string `json:"network_hash"`
	Source      string `json:"source,omitempty"`
	Status      string `json:"status"`
	Ticks       int64  `json:"ticks"`
	Rounds      int64  `json:"rounds"`
	Error       string `json:"error,omitempty"`
	TraceHash   string `json:"trace_hash,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      RunSummary   `json:"run"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int      `json:"total_events"`
	Writes      int      `json:"writes"`
	Reads       int      `json:"reads"`
	Generated   int      `json:"generated"`
	External    int      `json:"external"`
	Channels    []string `json:"channels"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs and their channel events",
		Long: `Show the channel events of a run recorded with "procnet run --db".

Without --run, lists the recorded runs. With --run, prints the run's
timeline: every value written to or read from a channel, in the order
it happened, with the round and the proc that moved it. Events without
a proc were made by the caller (inputs).

Examples:
  procnet trace --db ./runs.db
  procnet trace --db ./runs.db --network accumulator
  procnet trace --db ./runs.db --run 0190a1b2-...
  procnet trace --db ./runs.db --run 0190a1b2-... --channel out --kind write --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to trace (lists runs when omitted)")
	cmd.Flags().StringVar(&opts.Network, "network", "", "only list runs of this network")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "filter to one channel")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to write or read events")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	switch opts.Kind {
	case "", string(engine.EventWrite), string(engine.EventRead):
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be write or read", opts.Kind))
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx, opts.Network)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
		}
		return outputRunList(formatter, runs)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeStore, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	events, err := st.ReadEvents(ctx, opts.RunID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read events", err)
	}

	result := TraceResult{
		Run:      summarizeRun(run),
		Timeline: buildTimeline(events, opts.Channel, engine.EventKind(opts.Kind)),
	}
	result.Stats = traceStats(result.Timeline)

	if opts.Format == "json" {
		return formatter.Response(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// openExistingStore opens a database that must already exist; store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func summarizeRun(run store.Run) RunSummary {
	return RunSummary{
		ID:          run.ID,
		Network:     run.Network,
		NetworkHash: run.NetworkHash,
		Source:      run.Source,
		Status:      string(run.Status),
		Ticks:       run.Ticks,
		Rounds:      run.Rounds,
		Error:       run.Error,
		TraceHash:   run.TraceHash,
	}
}

// buildTimeline converts stored events to timeline events, keeping only
// events on channel and of kind when those are set.
func buildTimeline(events []engine.ChannelEvent, channel string, kind engine.EventKind) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		if channel != "" && ev.Channel != channel {
			continue
		}
		if kind != "" && ev.Kind != kind {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:       ev.Seq,
			Round:     ev.Round,
			Kind:      string(ev.Kind),
			Channel:   ev.Channel,
			Proc:      ev.Proc,
			Value:     ir.ToNative(ev.Value),
			Generated: ev.Generated,
		})
	}
	return timeline
}

func traceStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(timeline), Channels: []string{}}
	for _, ev := range timeline {
		switch engine.EventKind(ev.Kind) {
		case engine.EventWrite:
			stats.Writes++
		case engine.EventRead:
			stats.Reads++
		}
		if ev.Generated {
			stats.Generated++
		}
		if ev.Proc == "" {
			stats.External++
		}
		if !slices.Contains(stats.Channels, ev.Channel) {
			stats.Channels = append(stats.Channels, ev.Channel)
		}
	}
	slices.Sort(stats.Channels)
	return stats
}

// outputRunList prints the recorded runs.
func outputRunList(formatter *OutputFormatter, runs []store.Run) error {
	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarizeRun(run)
	}

	if formatter.Format == "json" {
		return formatter.Response(CLIResponse{Status: "ok", Data: summaries})
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	fmt.Fprintf(w, "Runs: %d\n\n", len(summaries))
	for _, run := range summaries {
		fmt.Fprintf(w, "  %s  %s  %s  (ticks %d, rounds %d)\n",
			run.ID, run.Network, run.Status, run.Ticks, run.Rounds)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Network: %s (%s)\n", result.Run.Network, truncateID(result.Run.NetworkHash))
	fmt.Fprintf(w, "Status: %s after %d tick(s), %d round(s)\n", result.Run.Status, result.Run.Ticks, result.Run.Rounds)
	if result.Run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Run.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, ev := range result.Timeline {
			formatTimelineEvent(w, ev)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Writes:       %d\n", result.Stats.Writes)
	fmt.Fprintf(w, "  Reads:        %d\n", result.Stats.Reads)
	fmt.Fprintf(w, "  Generated:    %d\n", result.Stats.Generated)
	fmt.Fprintf(w, "  External:     %d\n", result.Stats.External)
	fmt.Fprintf(w, "  Channels:     %s\n", strings.Join(result.Stats.Channels, ", "))
	if verbose && result.Run.TraceHash != "" {
		fmt.Fprintf(w, "  Trace Hash:   %s\n", result.Run.TraceHash)
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent) {
	source := ev.Proc
	if source == "" {
		source = "input"
	}
	if ev.Generated {
		source += ", generated"
	}
	fmt.Fprintf(w, "  [%d] r%d %-5s %s = %s (%s)\n",
		ev.Seq, ev.Round, strings.ToUpper(ev.Kind), ev.Channel, formatValue(ev.Value), source)
}

// formatArgs formats a map for display with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	var parts []string
	for _, k := range sortedKeys(args) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// truncateID truncates a long ID or hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
