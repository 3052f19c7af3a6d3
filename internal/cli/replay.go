package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	Rounds       int64  `json:"rounds"`
	Events       int    `json:"events"`
	RecordedHash string `json:"recorded_hash"`
	ReplayHash   string `json:"replay_hash"`
	Match        bool   `json:"match"`
	Error        string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Network  string            `json:"network"`
	Runs     []ReplayRunResult `json:"runs"`
	Total    int               `json:"total"`
	AllMatch bool              `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <network>",
		Short: "Replay recorded runs and verify determinism",
		Long: `Replay runs recorded with "procnet run --db" against a network and
verify that each replay reproduces the recorded channel events.

Generator values and inputs are taken from the recording; every value a
proc sent or received must then be reproduced by evaluation alone. A run
recorded against a different network (hash mismatch) fails verification.

Exit codes:
  0 - All runs reproduced
  1 - A replay diverged from its recording
  2 - Command error (database not found, etc.)

Examples:
  procnet replay ./networks/accumulator.cue --db ./runs.db
  procnet replay ./networks/accumulator.cue --db ./runs.db --run 0190a1b2-...
  procnet replay ./networks/accumulator.cue --db ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	n, err := loadNetwork(formatter, path)
	if err != nil {
		return err
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx, n.Name)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
		}
		for _, run := range runs {
			runIDs = append(runIDs, run.ID)
		}
	}

	result := ReplayResult{
		Network:  n.Name,
		Runs:     make([]ReplayRunResult, 0, len(runIDs)),
		Total:    len(runIDs),
		AllMatch: true,
	}

	logger := formatter.Logger()
	for _, id := range runIDs {
		formatter.VerboseLog("Replaying run %s", id)
		runResult, err := replayAndVerifyRun(ctx, st, id, n, engine.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to replay run %s", id), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Match {
			result.AllMatch = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter.Writer, result, opts.Verbose)
}

// replayAndVerifyRun replays one stored run. A network mismatch is a
// verification failure, not a command error.
func replayAndVerifyRun(ctx context.Context, st *store.Store, runID string, n *ir.Network, opts ...engine.Option) (ReplayRunResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	replay, err := st.ReplayRun(ctx, runID, n, opts...)
	if errors.Is(err, store.ErrNetworkMismatch) {
		return ReplayRunResult{
			RunID:  runID,
			Status: string(run.Status),
			Match:  false,
			Error:  err.Error(),
		}, nil
	}
	if err != nil {
		return ReplayRunResult{}, err
	}

	res := ReplayRunResult{
		RunID:        runID,
		Status:       string(run.Status),
		Rounds:       replay.Rounds,
		Events:       len(replay.Events),
		RecordedHash: replay.RecordedHash,
		ReplayHash:   replay.ReplayHash,
	}
	// Only a run that failed may fail again on replay.
	failed := run.Status == store.StatusFailed
	res.Match = replay.Match() && (replay.Err != nil) == failed
	if replay.Err != nil {
		res.Error = replay.Err.Error()
	}
	return res, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplayFailed,
			Message: "determinism verification failed",
		}
	}

	if err := formatter.Response(response); err != nil {
		return err
	}

	if !result.AllMatch {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	if result.Total == 0 {
		fmt.Fprintf(w, "No runs of network %s found in database.\n", result.Network)
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s) of %s\n", result.Total, result.Network)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Match {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, run.RunID, run.Status)
		fmt.Fprintf(w, "  Events: %d over %d round(s)\n", run.Events, run.Rounds)
		if verbose {
			fmt.Fprintf(w, "  Recorded: %s\n", run.RecordedHash)
			fmt.Fprintf(w, "  Replayed: %s\n", run.ReplayHash)
		}
		if run.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", run.Error)
		}
		if !run.Match {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
