package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/compiler"
)

func TestValidateValidNetwork(t *testing.T) {
	out, _, err := execute(t, "validate", networkPath("iota"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Network iota valid")
	assert.NotContains(t, out, "warning")
}

func TestValidateValidNetworkJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", networkPath("accumulator"))
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateReportsUnprimedFeedback(t *testing.T) {
	out, _, err := execute(t, "validate", networkPath("deadlocked"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Network deadlocked valid")
	assert.Contains(t, out, "warning: Feedback loop")
	assert.Contains(t, out, "may deadlock")
}

func TestValidatePrimedFeedbackIsInfo(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", networkPath("backedge"))
	require.NoError(t, err)

	var result ValidationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, compiler.LevelInfo, result.Warnings[0].Level)

	text, _, err := execute(t, "validate", networkPath("backedge"))
	require.NoError(t, err)
	assert.NotContains(t, text, "info:")

	verbose, _, err := execute(t, "--verbose", "validate", networkPath("backedge"))
	require.NoError(t, err)
	assert.Contains(t, verbose, "info: Feedback loop")
}

func TestValidateInvalidNetwork(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.cue", brokenNetwork)

	out, _, err := execute(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)

	codes := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		codes[i] = e.Code
	}
	assert.Contains(t, codes, compiler.ErrUnknownChannel)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, _, err := execute(t, "validate", "/nonexistent/network.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateBuildError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "channel: {\n")

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}
