// Package main is the entry point for dubctl, the video dubbing pipeline
// CLI: run, bless, and phases.
package main

import (
	"fmt"
	"os"

	"github.com/reelsub/dubpipe/cmd/dubctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
