package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelsub/dubpipe/internal/phases"
)

var phasesJQ string

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List pipeline phases with their version, requires, and provides",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Phase metadata (Name/Version/Requires/Provides) does not depend
		// on any phase's injected adapters, so this command lists it from
		// zero-value phase structs rather than calling build, which would
		// otherwise require every adapter's credentials just to print a
		// static table.
		set := phases.Set{
			Demux: &phases.DemuxPhase{},
			Sep:   &phases.SepPhase{},
			ASR:   &phases.ASRPhase{},
			Sub:   &phases.SubPhase{},
			MT:    &phases.MTPhase{},
			Align: &phases.AlignPhase{},
			TTS:   &phases.TTSPhase{},
			Mix:   &phases.MixPhase{},
			Burn:  &phases.BurnPhase{},
		}

		all := phases.All(set)
		if phasesJQ != "" {
			rows := make([]map[string]any, len(all))
			for i, p := range all {
				rows[i] = map[string]any{
					"name":     p.Name(),
					"version":  p.Version(),
					"requires": p.Requires(),
					"provides": p.Provides(),
				}
			}
			return filterJQ(phasesJQ, rows)
		}

		headers := []string{"PHASE", "VERSION", "REQUIRES", "PROVIDES"}
		rows := make([][]string, len(all))
		for i, p := range all {
			rows[i] = []string{p.Name(), "v" + p.Version(), strings.Join(p.Requires(), ","), strings.Join(p.Provides(), ",")}
		}
		fmt.Print(renderTable(headers, rows))
		return nil
	},
}

func init() {
	phasesCmd.Flags().StringVar(&phasesJQ, "jq", "", "filter phase list through a jq expression instead of printing a table")
	rootCmd.AddCommand(phasesCmd)
}
