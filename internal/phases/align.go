package phases

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/reelsub/dubpipe/internal/align"
	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
	"github.com/reelsub/dubpipe/internal/subtitle"
)

// AlignPhase re-segments mt's English translations into the SSOT's fixed
// utterance windows and builds the DubManifest tts and mix consume.
// demux.audio is a declared input only to keep the dependency graph
// accurate (the audio duration it would be probed for is already carried
// on the subtitle model sub built from it); align reads no bytes from it.
type AlignPhase struct {
	Policy align.Policy
}

func (p *AlignPhase) Name() string    { return "align" }
func (p *AlignPhase) Version() string { return "1" }
func (p *AlignPhase) Requires() []string {
	return []string{"subs.subtitle_model", "mt.mt_output", "demux.audio"}
}
func (p *AlignPhase) Provides() []string {
	return []string{"subs.subtitle_align", "subs.en_srt", "dub.dub_manifest"}
}

func (p *AlignPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	raw, err := os.ReadFile(inputs["subs.subtitle_model"])
	if err != nil {
		return phase.Failed(fmt.Errorf("align: read subtitle model: %w", err))
	}
	var model subtitle.Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return phase.Failed(fmt.Errorf("align: parse subtitle model: %w", err))
	}

	translations, err := LoadTranslations(inputs["mt.mt_output"])
	if err != nil {
		return phase.Failed(fmt.Errorf("align: %w", err))
	}

	policy := p.Policy
	if policy == (align.Policy{}) {
		policy = align.DefaultPolicy()
	}

	result, err := align.Run(&model, translations, model.Audio.DurationMs, policy)
	if err != nil {
		return phase.Failed(fmt.Errorf("align: %w", err))
	}

	alignedJSON, err := json.MarshalIndent(result.Aligned, "", "  ")
	if err != nil {
		return phase.Failed(fmt.Errorf("align: marshal aligned subtitle: %w", err))
	}
	if err := fingerprint.AtomicWrite(alignedJSON, outputs["subs.subtitle_align"]); err != nil {
		return phase.Failed(fmt.Errorf("align: write aligned subtitle: %w", err))
	}

	srt := subtitle.RenderSRT(result.Aligned)
	if err := fingerprint.AtomicWrite([]byte(srt), outputs["subs.en_srt"]); err != nil {
		return phase.Failed(fmt.Errorf("align: write en srt: %w", err))
	}

	manifestJSON, err := json.MarshalIndent(result.Manifest, "", "  ")
	if err != nil {
		return phase.Failed(fmt.Errorf("align: marshal dub manifest: %w", err))
	}
	if err := fingerprint.AtomicWrite(manifestJSON, outputs["dub.dub_manifest"]); err != nil {
		return phase.Failed(fmt.Errorf("align: write dub manifest: %w", err))
	}

	res := phase.Succeeded([]string{"subs.subtitle_align", "subs.en_srt", "dub.dub_manifest"})
	res.Warnings = result.Warnings
	return res
}
