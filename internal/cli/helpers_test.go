package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// networkPath returns the path of a network under testdata/networks.
func networkPath(name string) string {
	return filepath.Join("..", "..", "testdata", "networks", name+".cue")
}

// scenariosDir is the shared scenario directory.
var scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// decodeResponse decodes a JSON CLI response, unpacking Data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}

// recordAccumulator runs the accumulator network with inputs 1, 2, 3 into
// the database at dbPath and returns the run ID.
func recordAccumulator(t *testing.T, dbPath string) string {
	t.Helper()
	inputs := writeFile(t, t.TempDir(), "inputs.yaml", "inputs:\n  in: [1, 2, 3]\n")
	out, _, err := execute(t, "--format", "json", "run", networkPath("accumulator"),
		"--inputs", inputs, "--db", dbPath)
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	require.NotEmpty(t, result.RunID)
	return result.RunID
}

const brokenNetwork = `
name: "broken"
channel: out: {ops: "send_only", type: "bits[4]"}
proc: p: {
	next_token: "snd"
	node: {
		tok: {op: "token"}
		lit: {op: "literal", type: "bits[4]", value: 3}
		snd: {op: "send", channel: "missing", token: "tok", data: "lit"}
	}
}
`
