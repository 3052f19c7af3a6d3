package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/ir"
)

func TestCompileNetwork(t *testing.T) {
	out, _, err := execute(t, "compile", networkPath("iota"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled network iota: 1 channel(s), 1 proc(s)")
	assert.Contains(t, out, "iota_out: send_only bits[32], unbounded")
	assert.Contains(t, out, "iota: 5 node(s), 1 state element(s)")
	assert.Contains(t, out, "Hash: ")
}

func TestCompileNetworkJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", networkPath("iota_accum"))
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, result.Hash, 64)
	assert.Equal(t, ir.IRVersion, result.IRVersion)
	assert.Equal(t, "iota_accum", result.Network["name"])
	assert.Equal(t, 2, result.Stats.Channels)
	assert.Equal(t, 2, result.Stats.Procs)
}

func TestCompileHashMatchesNetworkHash(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", networkPath("accumulator"))
	require.NoError(t, err)

	var result CompilationResult
	decodeResponse(t, out, &result)

	n, err := compiler.LoadNetwork(networkPath("accumulator"))
	require.NoError(t, err)
	want, err := ir.NetworkHash(n)
	require.NoError(t, err)
	assert.Equal(t, want, result.Hash)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "iota.json")

	out, _, err := execute(t, "compile", networkPath("iota"), "-o", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Output written to: "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var network map[string]any
	require.NoError(t, json.Unmarshal(data, &network))
	assert.Equal(t, "iota", network["name"])
	assert.Equal(t, ir.IRVersion, network["ir_version"])

	n, err := compiler.LoadNetwork(networkPath("iota"))
	require.NoError(t, err)
	canonical, err := ir.MarshalCanonical(n.Describe())
	require.NoError(t, err)
	assert.Equal(t, canonical, data)
}

func TestCompileNonExistentPath(t *testing.T) {
	out, _, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrCodeNoFiles, resp.Error.Code)
}

func TestCompileInvalidNetwork(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.cue", brokenNetwork)

	out, _, err := execute(t, "compile", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownChannel)
}

func TestCompileVerboseOutput(t *testing.T) {
	_, errOut, err := execute(t, "--verbose", "compile", networkPath("iota"))
	require.NoError(t, err)
	assert.Contains(t, errOut, "Loading network from")
	assert.Contains(t, errOut, "Loaded network iota: 1 channel(s), 1 proc(s)")
}

func TestCalculateStats(t *testing.T) {
	n, err := compiler.LoadNetwork(networkPath("rle_filter"))
	require.NoError(t, err)

	stats := calculateStats(n)
	assert.Equal(t, 3, stats.Channels)
	assert.Equal(t, 2, stats.Procs)

	nodes, state := 0, 0
	for _, p := range n.Procs {
		nodes += len(p.Nodes)
		state += len(p.State)
	}
	assert.Equal(t, nodes, stats.Nodes)
	assert.Equal(t, state, stats.StateElements)
}

func TestCapacityLabel(t *testing.T) {
	assert.Equal(t, "unbounded", capacityLabel(&ir.Channel{}))
	assert.Equal(t, "capacity 4", capacityLabel(&ir.Channel{Capacity: 4}))
}
