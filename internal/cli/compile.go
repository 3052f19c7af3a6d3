package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	Network   map[string]any   `json:"network"`
	Hash      string           `json:"hash"`
	IRVersion string           `json:"ir_version"`
	Stats     CompilationStats `json:"stats"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Channels      int `json:"channels"`
	Procs         int `json:"procs"`
	Nodes         int `json:"nodes"`
	StateElements int `json:"state_elements"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <network>",
		Short: "Compile a CUE network to canonical IR",
		Long: `Compile a CUE network description to canonical IR.

The network may be a single .cue file or a directory holding one CUE
package. The compiled network is validated and printed with its content
hash; --output writes the canonical JSON form to a file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	n, err := loadNetwork(formatter, path)
	if err != nil {
		return err
	}

	if errs := compiler.ValidateNetwork(n); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	hash, err := ir.NetworkHash(n)
	if err != nil {
		return formatter.Fail(ExitCommandError, compiler.ErrCodeGeneric, "hashing network", err)
	}

	result := &CompilationResult{
		Network:   n.Describe(),
		Hash:      hash,
		IRVersion: ir.IRVersion,
		Stats:     calculateStats(n),
	}

	if opts.Output != "" {
		if err := writeIRToFile(n, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		formatter.VerboseLog("Wrote canonical IR to %s", opts.Output)
	}

	return outputCompileSuccess(formatter, n, result, opts.Output)
}

// loadNetwork loads a network and reports load failures through formatter.
// The returned error is already an ExitError.
func loadNetwork(formatter *OutputFormatter, path string) (*ir.Network, error) {
	formatter.VerboseLog("Loading network from %s", path)
	n, err := compiler.LoadNetwork(path)
	if err != nil {
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return nil, WrapExitError(ExitCommandError, "failed to load network", err)
		}
		_ = formatter.Error(compiler.ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load network", err)
	}
	formatter.VerboseLog("Loaded network %s: %d channel(s), %d proc(s)", n.Name, len(n.Channels), len(n.Procs))
	return n, nil
}

// calculateStats computes summary statistics for a network.
func calculateStats(n *ir.Network) CompilationStats {
	stats := CompilationStats{
		Channels: len(n.Channels),
		Procs:    len(n.Procs),
	}
	for _, p := range n.Procs {
		stats.Nodes += len(p.Nodes)
		stats.StateElements += len(p.State)
	}
	return stats
}

// writeIRToFile writes the canonical JSON form of n to path.
func writeIRToFile(n *ir.Network, path string) error {
	data, err := ir.MarshalCanonical(n.Describe())
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, n *ir.Network, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled network %s: %d channel(s), %d proc(s)\n\n",
		n.Name, result.Stats.Channels, result.Stats.Procs)

	if len(n.Channels) > 0 {
		fmt.Fprintln(w, "Channels:")
		for _, ch := range n.Channels {
			fmt.Fprintf(w, "  %s: %s %s, %s\n", ch.Name, ch.Ops, ch.Type, capacityLabel(ch))
		}
		fmt.Fprintln(w)
	}

	if len(n.Procs) > 0 {
		fmt.Fprintln(w, "Procs:")
		for _, p := range n.Procs {
			fmt.Fprintf(w, "  %s: %d node(s), %d state element(s)\n", p.Name, len(p.Nodes), len(p.State))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Hash: %s\n", result.Hash)
	if outputFile != "" {
		fmt.Fprintf(w, "Output written to: %s\n", outputFile)
	}
	return nil
}

func capacityLabel(ch *ir.Channel) string {
	if !ch.Bounded() {
		return "unbounded"
	}
	return fmt.Sprintf("capacity %d", ch.Capacity)
}
