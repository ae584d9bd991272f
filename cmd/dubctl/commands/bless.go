package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelsub/dubpipe/internal/config"
	"github.com/reelsub/dubpipe/internal/phases"
	"github.com/reelsub/dubpipe/internal/pipeline/manifest"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
)

var blessJQ string

var blessCmd = &cobra.Command{
	Use:   "bless <video> <phase>",
	Short: "Re-fingerprint a phase's output artifacts without re-running it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		phaseName := args[1]

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = cfg.WithVideoPath(videoPath)

		workspace := outputDir
		if workspace == "" {
			workspace = config.DeriveWorkspace(videoPath)
		}
		manifestPath := filepath.Join(workspace, "manifest.json")
		m, err := manifest.Load(manifestPath, manifest.Job{Workspace: workspace})
		if err != nil {
			return err
		}

		stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
		registry := phases.NewRegistry(stem)

		set, err := build(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		var target phase.Phase
		for _, p := range phases.All(*set) {
			if p.Name() == phaseName {
				target = p
				break
			}
		}
		if target == nil {
			return fmt.Errorf("bless: unknown phase %q", phaseName)
		}

		runner := phase.NewRunner(m, workspace, registry)

		reports, err := runner.Bless(target)
		if err != nil {
			return err
		}

		if blessJQ != "" {
			rows := make([]map[string]any, len(reports))
			for i, r := range reports {
				rows[i] = map[string]any{"key": r.Key, "status": r.Status}
			}
			return filterJQ(blessJQ, rows)
		}

		rows := make([][]string, len(reports))
		for i, r := range reports {
			rows[i] = []string{r.Key, r.Status}
		}
		fmt.Print(renderTable([]string{"ARTIFACT", "STATUS"}, rows))
		return nil
	},
}

func init() {
	blessCmd.Flags().StringVar(&blessJQ, "jq", "", "filter bless report through a jq expression instead of printing a table")
	rootCmd.AddCommand(blessCmd)
}
