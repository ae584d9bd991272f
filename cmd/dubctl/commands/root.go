// Package commands implements dubctl's cobra command tree: run, bless,
// and phases, per spec §6.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dubctl",
	Short: "Resumable video dubbing pipeline",
	Long: `dubctl transcribes, translates, re-speaks, and mixes a dubbed
audio track onto a source video, one phase at a time, resuming from
wherever the workspace manifest says a prior run left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to dub.config.yaml (defaults to ./dub.config.yaml if present)")
}
