package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/reelsub/dubpipe/internal/config"
	"github.com/reelsub/dubpipe/internal/phases"
	"github.com/reelsub/dubpipe/internal/pipeline/manifest"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
)

var (
	runFrom   string
	runTo     string
	runForce  bool
	outputDir string
)

var runCmd = &cobra.Command{
	Use:   "run <video>",
	Short: "Run the dubbing pipeline up to (and from) a named phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		videoPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(videoPath); err != nil {
			return fmt.Errorf("run: video file: %w", err)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = cfg.WithVideoPath(videoPath)

		workspace := outputDir
		if workspace == "" {
			workspace = config.DeriveWorkspace(videoPath)
		}
		if err := os.MkdirAll(workspace, 0o755); err != nil {
			return fmt.Errorf("run: create workspace %s: %w", workspace, err)
		}

		manifestPath := filepath.Join(workspace, "manifest.json")
		job := manifest.Job{JobID: uuid.NewString(), Workspace: workspace}
		m, err := manifest.Load(manifestPath, job)
		if err != nil {
			return err
		}

		stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
		registry := phases.NewRegistry(stem)

		ctx := cmd.Context()
		set, err := build(ctx, cfg)
		if err != nil {
			return err
		}

		runner := phase.NewRunner(m, workspace, registry)
		runCtx := phase.RunContext{JobID: m.Job.JobID, Workspace: workspace, Config: cfg.Raw, Ctx: ctx}

		if err := runner.RunPipeline(phases.All(*set), runCtx, runForce, runFrom, runTo); err != nil {
			return err
		}

		fmt.Printf("dubctl: pipeline succeeded, workspace %s\n", workspace)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFrom, "from", "", "first phase to run (forces a contiguous suffix starting here)")
	runCmd.Flags().StringVar(&runTo, "to", "", "last phase to run")
	runCmd.Flags().BoolVar(&runForce, "force", false, "re-run every phase regardless of should_run")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "workspace directory (defaults to the derived <series>/dub/<stem>/ path)")
	rootCmd.AddCommand(runCmd)
}
