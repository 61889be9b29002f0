// Command raftnode is the process entry point: version injection, panic
// recovery, and handing off to the Cobra command tree, the same shape as
// the teacher's cmd/queue/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/quorumkit/raft/internal/cli"
)

// Build-time version injection via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
