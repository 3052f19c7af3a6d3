package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/store"
)

func TestReplayRecordedRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	runID := recordAccumulator(t, dbPath)

	out, _, err := execute(t, "replay", networkPath("accumulator"), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 1 run(s) of accumulator")
	assert.Contains(t, out, "✓ Run: "+runID+" (blocked)")
	assert.Contains(t, out, "Events: 9 over 4 round(s)")
	assert.Contains(t, out, "✓ All runs verified deterministic")
}

func TestReplayRecordedRunJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	first := recordAccumulator(t, dbPath)
	recordAccumulator(t, dbPath)

	out, _, err := execute(t, "--format", "json", "replay", networkPath("accumulator"),
		"--db", dbPath, "--run", first)
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "accumulator", result.Network)
	assert.True(t, result.AllMatch)
	require.Len(t, result.Runs, 1)

	run := result.Runs[0]
	assert.Equal(t, first, run.RunID)
	assert.True(t, run.Match)
	assert.Equal(t, run.RecordedHash, run.ReplayHash)
	assert.Equal(t, 9, run.Events)
}

func TestReplayNetworkMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	runID := recordAccumulator(t, dbPath)

	out, _, err := execute(t, "--format", "json", "replay", networkPath("iota"), "--db", dbPath, "--run", runID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReplayFailed, resp.Error.Code)
	require.Len(t, result.Runs, 1)
	assert.False(t, result.Runs[0].Match)
	assert.Contains(t, result.Runs[0].Error, store.ErrNetworkMismatch.Error())
}

func TestReplayNoRunsOfNetwork(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	recordAccumulator(t, dbPath)

	out, _, err := execute(t, "replay", networkPath("iota"), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs of network iota found in database.")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	recordAccumulator(t, dbPath)

	_, _, err := execute(t, "replay", networkPath("accumulator"), "--db", dbPath, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayMissingDatabase(t *testing.T) {
	out, _, err := execute(t, "replay", networkPath("accumulator"), "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E012]")
}
