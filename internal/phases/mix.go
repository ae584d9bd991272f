package phases

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/reelsub/dubpipe/internal/align"
	"github.com/reelsub/dubpipe/internal/mix"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
	"github.com/reelsub/dubpipe/internal/tts"
)

// MixPhase composes the final dubbed audio track: every TTS segment placed
// at its fixed start_ms, mixed against the background and (optionally)
// the original vocals, loudness-normalized in one ffmpeg pass.
type MixPhase struct {
	Runner mix.Runner
	Policy mix.Policy
}

func (p *MixPhase) Name() string    { return "mix" }
func (p *MixPhase) Version() string { return "1" }
func (p *MixPhase) Requires() []string {
	return []string{"dub.dub_manifest", "tts.tts_report", "sep.accompaniment", "sep.vocals"}
}
func (p *MixPhase) Provides() []string { return []string{"mix.audio"} }

func (p *MixPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	manifestRaw, err := os.ReadFile(inputs["dub.dub_manifest"])
	if err != nil {
		return phase.Failed(fmt.Errorf("mix: read dub manifest: %w", err))
	}
	var manifest align.DubManifest
	if err := json.Unmarshal(manifestRaw, &manifest); err != nil {
		return phase.Failed(fmt.Errorf("mix: parse dub manifest: %w", err))
	}

	reportRaw, err := os.ReadFile(inputs["tts.tts_report"])
	if err != nil {
		return phase.Failed(fmt.Errorf("mix: read tts report: %w", err))
	}
	var report tts.Report
	if err := json.Unmarshal(reportRaw, &report); err != nil {
		return phase.Failed(fmt.Errorf("mix: parse tts report: %w", err))
	}

	segments, warnings := mix.SegmentsFromReport(manifest, report)
	if len(segments) == 0 {
		return phase.Failed(fmt.Errorf("mix: no usable TTS segments to place"))
	}

	videoPath, _ := ctx.Config["video_path"].(string)

	mixInputs := mix.Inputs{
		VideoPath: videoPath,
	}
	if accomp, ok := inputs["sep.accompaniment"]; ok && accomp != "" {
		mixInputs.AccompanimentPath = accomp
		mixInputs.HasAccompaniment = true
	}
	if vocals, ok := inputs["sep.vocals"]; ok && vocals != "" && !p.Policy.MuteOriginal {
		mixInputs.VocalsPath = vocals
		mixInputs.HasVocals = true
	}

	plan := mix.Plan{
		Inputs:     mixInputs,
		Segments:   segments,
		OutputPath: outputs["mix.audio"],
		Policy:     p.Policy,
	}

	if err := mix.Run(ctx.Ctx, p.Runner, plan); err != nil {
		return phase.Failed(fmt.Errorf("mix: %w", err))
	}

	res := phase.Succeeded([]string{"mix.audio"})
	res.Warnings = warnings
	return res
}
