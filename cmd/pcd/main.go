// Command pcd drives a pseudo character device: a bounded in-memory byte
// store with open/seek/read/write/release semantics.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pcd/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
