package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/harness"
	"github.com/roach88/procnet/internal/store"
)

func channelByName(t *testing.T, result RunResult, name string) ChannelContents {
	t.Helper()
	for _, ch := range result.Channels {
		if ch.Name == name {
			return ch
		}
	}
	t.Fatalf("channel %s not in result", name)
	return ChannelContents{}
}

func TestRunAccumulatorUntilBlocked(t *testing.T) {
	inputs := writeFile(t, t.TempDir(), "inputs.yaml", "inputs:\n  in: [1, 2, 3]\n")

	out, _, err := execute(t, "run", networkPath("accumulator"), "--inputs", inputs)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Run")
	assert.Contains(t, out, "blocked after 4 tick(s), 4 round(s)")
	assert.Contains(t, out, "out: [1 3 6] (writes 3, reads 0)")
	assert.Contains(t, out, "in: [] (writes 3, reads 3)")
}

func TestRunAccumulatorJSON(t *testing.T) {
	inputs := writeFile(t, t.TempDir(), "inputs.yaml", "inputs:\n  in: [1, 2, 3]\n")

	out, _, err := execute(t, "--format", "json", "run", networkPath("accumulator"), "--inputs", inputs)
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, result.RunID, resp.RunID)
	assert.Equal(t, "accumulator", result.Network)
	assert.Equal(t, harness.ModeUntilBlocked, result.Mode)
	assert.Equal(t, string(store.StatusBlocked), result.Status)
	assert.Equal(t, int64(4), result.Ticks)
	assert.Equal(t, int64(4), result.Rounds)
	assert.Empty(t, result.Error)

	outCh := channelByName(t, result, "out")
	assert.Equal(t, []any{float64(1), float64(3), float64(6)}, outCh.Values)
	assert.Equal(t, int64(3), outCh.Writes)
}

func TestRunIotaUntilOutput(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "run", networkPath("iota"),
		"--mode", "until_output", "--until-output", "iota_out=3")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Equal(t, string(store.StatusCompleted), result.Status)
	assert.Equal(t, int64(3), result.Ticks)
	assert.Equal(t, []any{float64(5), float64(15), float64(25)}, channelByName(t, result, "iota_out").Values)
	assert.Equal(t, map[string]any{"st": float64(35)}, result.State["iota"])
}

func TestRunVerboseShowsState(t *testing.T) {
	out, _, err := execute(t, "--verbose", "run", networkPath("iota"), "--mode", "ticks", "--ticks", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "iota_out: [5 15] (writes 2, reads 0)")
	assert.Contains(t, out, "State:")
	assert.Contains(t, out, "iota: {st=25}")
}

func TestRunDeadlock(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "run", networkPath("deadlocked"), "--mode", "ticks", "--ticks", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, harness.KindDeadlock, result.Kind)
	assert.Equal(t, string(store.StatusDeadlocked), result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestRunDeadlockText(t *testing.T) {
	out, _, err := execute(t, "run", networkPath("deadlocked"), "--mode", "ticks", "--ticks", "2")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Run")
	assert.Contains(t, out, "deadlocked after")
	assert.Contains(t, out, "deadlock: ")
}

func TestRunWritesMetrics(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "procnet.prom")

	_, _, err := execute(t, "run", networkPath("iota"), "--mode", "ticks", "--ticks", "3",
		"--metrics-out", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "procnet_engine_rounds_total")
}

func TestRunRecordsToDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	runID := recordAccumulator(t, dbPath)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(t.Context(), runID)
	require.NoError(t, err)
	assert.Equal(t, "accumulator", run.Network)
	assert.Equal(t, store.StatusBlocked, run.Status)
	assert.Equal(t, int64(4), run.Ticks)

	events, err := st.ReadEvents(t.Context(), runID)
	require.NoError(t, err)
	assert.Len(t, events, 9)
}

func TestRunInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown mode", []string{"--mode", "forever"}},
		{"ticks mode without ticks", []string{"--mode", "ticks"}},
		{"until_output without targets", []string{"--mode", "until_output"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", networkPath("iota")}, tt.args...)
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRunRequireInputs(t *testing.T) {
	out, _, err := execute(t, "run", networkPath("accumulator"), "--require-inputs")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E220")

	dir := t.TempDir()
	inputs := writeFile(t, dir, "inputs.yaml", "inputs:\n  in: [1, 2, 3]\n")
	out, _, err = execute(t, "run", networkPath("accumulator"), "--inputs", inputs, "--require-inputs")
	require.NoError(t, err)
	assert.Contains(t, out, "out: [1 3 6]")

	empty := writeFile(t, dir, "empty.yaml", "inputs:\n  in: []\n")
	out, _, err = execute(t, "run", networkPath("accumulator"), "--inputs", empty, "--require-inputs")
	require.Error(t, err)
	assert.Contains(t, out, "E220")
}

func TestRunBadInputsFile(t *testing.T) {
	inputs := writeFile(t, t.TempDir(), "inputs.yaml", "values:\n  in: [1]\n")

	out, _, err := execute(t, "run", networkPath("accumulator"), "--inputs", inputs)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E011]")
}

func TestRunUnknownInputChannel(t *testing.T) {
	inputs := writeFile(t, t.TempDir(), "inputs.yaml", "inputs:\n  nowhere: [1]\n")

	out, _, err := execute(t, "run", networkPath("accumulator"), "--inputs", inputs)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "nowhere")
}

func TestReadInputsFile(t *testing.T) {
	dir := t.TempDir()

	f, err := readInputsFile("")
	require.NoError(t, err)
	assert.Empty(t, f.Inputs)

	path := writeFile(t, dir, "ok.yaml", "inputs:\n  in: [1, 2]\ngenerators:\n  data: [7]\n")
	f, err = readInputsFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Inputs["in"], 2)
	assert.Len(t, f.Generators["data"], 1)

	path = writeFile(t, dir, "both.yaml", "inputs:\n  in: [1]\ngenerators:\n  in: [2]\n")
	_, err = readInputsFile(path)
	assert.ErrorContains(t, err, "both inputs and a generator")

	_, err = readInputsFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
