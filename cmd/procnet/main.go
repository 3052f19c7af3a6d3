// Command procnet loads, runs, tests and replays proc networks.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/procnet/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "procnet: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
