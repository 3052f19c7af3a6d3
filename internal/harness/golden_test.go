package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/ir"
)

// Golden traces. To regenerate:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"iota", "accumulator", "deadlocked"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	first := loadAndRun(t, "rle_filter")
	second := loadAndRun(t, "rle_filter")

	a := NewTraceSnapshot("rle_filter", first)
	b := NewTraceSnapshot("rle_filter", second)
	aj, err := a.MarshalCanonical()
	require.NoError(t, err)
	bj, err := b.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))
}

func TestTraceSnapshot_OmitsRunID(t *testing.T) {
	result := NewResult()
	result.Ticks = 1
	result.Rounds = 1
	result.Trace = []engine.ChannelEvent{{
		RunID:   "run-abc",
		Seq:     1,
		Round:   1,
		Kind:    engine.EventWrite,
		Channel: "out",
		Proc:    "p",
		Value:   ir.UBits(3, 8),
	}}

	snap := NewTraceSnapshot("s", result)
	data, err := snap.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"rounds":1,"scenario_name":"s","ticks":1,"trace":[{"channel":"out","kind":"write","proc":"p","round":1,"seq":1,"value":3}]}`,
		string(data))
	assert.NotContains(t, string(data), "run-abc")
}
