// Package phases wires the pipeline's leaf packages (subtitle, mt, align,
// tts, mix, the media subprocess wrappers, and the external adapters) into
// concrete phase.Phase implementations: demux, sep, asr, sub, mt, align,
// tts, mix, burn, run in that order against one episode's workspace.
package phases

import (
	"fmt"

	"github.com/reelsub/dubpipe/internal/pipeline/phase"
)

// NewRegistry builds the path-template table every phase's outputs are
// allocated against. stem is the source video's filename stem (without
// extension); it qualifies the demux output and the final muxed video so
// both keep a recognizable name if copied out of the workspace.
func NewRegistry(stem string) phase.Registry {
	return phase.Registry{
		"demux.audio": {Relpath: fmt.Sprintf("audio/%s.wav", stem), Kind: "wav"},

		"sep.vocals":        {Relpath: "audio/vocals.wav", Kind: "wav"},
		"sep.accompaniment": {Relpath: "audio/accompaniment.wav", Kind: "wav"},

		"asr.asr_result": {Relpath: "subs/asr-raw-response.json", Kind: "json"},

		"subs.subtitle_model": {Relpath: "subs/subtitle.model.json", Kind: "json"},
		"subs.zh_srt":         {Relpath: "subs/zh.srt", Kind: "srt"},

		"mt.mt_input":  {Relpath: "subs/mt_input.jsonl", Kind: "file"},
		"mt.mt_output": {Relpath: "subs/mt_output.jsonl", Kind: "file"},

		"subs.subtitle_align": {Relpath: "subs/subtitle.align.json", Kind: "json"},
		"subs.en_srt":         {Relpath: "subs/en.srt", Kind: "srt"},

		"dub.dub_manifest": {Relpath: "dub/dub.model.json", Kind: "json"},

		// tts.segments has no single file of its own: a directory of
		// per-utterance WAVs cannot be content-hashed as one artifact.
		// The report already changes fingerprint whenever any segment's
		// path, status, or timing changes, so both provided keys point
		// at it.
		"tts.segments":    {Relpath: "tts/tts_report.json", Kind: "json"},
		"tts.tts_report":  {Relpath: "tts/tts_report.json", Kind: "json"},

		"mix.audio": {Relpath: "audio/mix.wav", Kind: "wav"},

		"burn.video": {Relpath: fmt.Sprintf("%s-dubbed.mp4", stem), Kind: "mp4"},
	}
}

// All returns every phase in pipeline order, for Runner.RunPipeline and
// the `phases` CLI command.
func All(p Set) []phase.Phase {
	return []phase.Phase{
		p.Demux,
		p.Sep,
		p.ASR,
		p.Sub,
		p.MT,
		p.Align,
		p.TTS,
		p.Mix,
		p.Burn,
	}
}

// Set bundles one constructed instance of every phase, built once per run
// by cmd/dubctl from its resolved configuration and adapters.
type Set struct {
	Demux *DemuxPhase
	Sep   *SepPhase
	ASR   *ASRPhase
	Sub   *SubPhase
	MT    *MTPhase
	Align *AlignPhase
	TTS   *TTSPhase
	Mix   *MixPhase
	Burn  *BurnPhase
}
