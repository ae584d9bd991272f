package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/reelsub/dubpipe/internal/media/probe"
	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
	"github.com/reelsub/dubpipe/internal/subtitle"
	"github.com/reelsub/dubpipe/internal/subtitle/cue"
	"github.com/reelsub/dubpipe/internal/subtitle/normalize"
)

// DurationProber probes an audio file's total duration. internal/media/probe
// satisfies this once bound to an ffprobe path.
type DurationProber func(ctx context.Context, path string) (int64, error)

// SubPhase builds the Subtitle Model (SSOT) from asr's raw utterance list:
// word extraction, utterance normalization, cue construction, and the zh
// SRT render.
type SubPhase struct {
	ProbeDuration  DurationProber
	NormalizeParams normalize.Params
	CueParams       cue.Params
}

func (p *SubPhase) Name() string       { return "sub" }
func (p *SubPhase) Version() string    { return "1" }
func (p *SubPhase) Requires() []string { return []string{"asr.asr_result", "demux.audio"} }
func (p *SubPhase) Provides() []string { return []string{"subs.subtitle_model", "subs.zh_srt"} }

func (p *SubPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	raw, err := os.ReadFile(inputs["asr.asr_result"])
	if err != nil {
		return phase.Failed(fmt.Errorf("sub: read asr result: %w", err))
	}
	var record ASRRawRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return phase.Failed(fmt.Errorf("sub: parse asr result: %w", err))
	}

	durationMs, err := p.ProbeDuration(ctx.Ctx, inputs["demux.audio"])
	if err != nil {
		return phase.Failed(fmt.Errorf("sub: probe audio duration: %w", err))
	}

	model, _ := subtitle.Build(toSubtitleUtterances(record.Utterances), durationMs, p.NormalizeParams, p.CueParams)

	modelJSON, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return phase.Failed(fmt.Errorf("sub: marshal subtitle model: %w", err))
	}
	if err := fingerprint.AtomicWrite(modelJSON, outputs["subs.subtitle_model"]); err != nil {
		return phase.Failed(fmt.Errorf("sub: write subtitle model: %w", err))
	}

	srt := subtitle.RenderSRT(model)
	if err := fingerprint.AtomicWrite([]byte(srt), outputs["subs.zh_srt"]); err != nil {
		return phase.Failed(fmt.Errorf("sub: write zh srt: %w", err))
	}

	return phase.Succeeded([]string{"subs.subtitle_model", "subs.zh_srt"})
}

// ProbeDurationMs adapts internal/media/probe.DurationMs to the
// DurationProber signature, binding the ffprobe binary path once.
func ProbeDurationMs(ffprobePath string) DurationProber {
	return func(ctx context.Context, path string) (int64, error) {
		return probe.DurationMs(ctx, ffprobePath, path)
	}
}
