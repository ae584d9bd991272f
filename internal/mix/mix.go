// Package mix builds the final dubbed audio track by placing each
// utterance's TTS WAV at its fixed start_ms, mixing it against the
// background track with either sidechain ducking or a simple fixed
// attenuation of the original vocals, and loudness-normalizing the result
// in a single pass. Composition itself is delegated to an ffmpeg
// filter_complex graph; this package only builds that graph
// deterministically.
package mix

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelsub/dubpipe/internal/align"
	"github.com/reelsub/dubpipe/internal/tts"
)

// Mode selects how the original vocals are treated under the dub. There
// is no hidden default: callers must set one explicitly.
type Mode string

const (
	ModeDucking Mode = "ducking"
	ModeSimple  Mode = "simple"
)

// Policy carries the tunable mix parameters, all with spec-documented
// defaults except Mode and MuteOriginal, which must be set explicitly.
type Policy struct {
	Mode                Mode
	MuteOriginal        bool
	TTSVolume           float64
	AccompanimentVolume float64
	VocalsVolume        float64
	DuckThreshold       float64
	DuckRatio           float64
	DuckAttackMs        float64
	DuckReleaseMs       float64
	TargetLUFS          float64
	TruePeak            float64
}

// DefaultTunables fills in every field except Mode/MuteOriginal, which the
// caller must still set.
func DefaultTunables() Policy {
	return Policy{
		TTSVolume:           1.0,
		AccompanimentVolume: 0.8,
		VocalsVolume:        0.15,
		DuckThreshold:       0.05,
		DuckRatio:           10.0,
		DuckAttackMs:        20.0,
		DuckReleaseMs:       400.0,
		TargetLUFS:          -16.0,
		TruePeak:            -1.0,
	}
}

// Inputs names the source files mix composes. AccompanimentPath and
// VocalsPath are optional; VideoPath is always input 0, and its audio
// stream stands in for whichever separated track is absent. No video
// stream reaches the mixed output.
type Inputs struct {
	VideoPath         string
	AccompanimentPath string
	VocalsPath        string
	HasAccompaniment  bool
	HasVocals         bool
}

// SegmentPlacement is one TTS WAV's position in the final timeline,
// derived from the DubManifest and the TTSReport.
type SegmentPlacement struct {
	Path    string
	StartMs int64
}

// Plan is the fully-resolved filtergraph request, independent of Policy
// validation, so Build can be tested without re-deriving placements.
type Plan struct {
	Inputs     Inputs
	Segments   []SegmentPlacement
	OutputPath string
	Policy     Policy
}

// SegmentsFromReport derives timeline placements from a DubManifest and
// its TTSReport, skipping any utterance whose segment failed (mix inserts
// silence there by construction: a failed segment's final_ms window is
// simply left unfilled, which is silence in an additively-mixed track).
func SegmentsFromReport(manifest align.DubManifest, report tts.Report) ([]SegmentPlacement, []string) {
	final := make(map[string]tts.SegmentReport, len(report.Segments))
	for _, s := range report.Segments {
		final[s.UttID] = s
	}

	var placements []SegmentPlacement
	var warnings []string
	for _, utt := range manifest.Utterances {
		seg, ok := final[utt.UttID]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("mix: no TTSSegmentReport for %s, inserting silence", utt.UttID))
			continue
		}
		if seg.Status == tts.StatusFailed {
			warnings = append(warnings, fmt.Sprintf("mix: utterance %s failed TTS fit (%s), inserting silence", utt.UttID, seg.Error))
			continue
		}
		placements = append(placements, SegmentPlacement{Path: seg.OutputPath, StartMs: utt.StartMs})
	}
	return placements, warnings
}

// BuildFilterComplex constructs the full ffmpeg filter_complex graph for
// one mix pass: per-segment adelay+amix into a single dub track, then the
// ducking/simple/mute composition against background and original vocals,
// then a single loudnorm pass. It does not run ffmpeg; see Run.
func BuildFilterComplex(p Plan) (filterComplex string, inputs []string, err error) {
	if p.Policy.Mode != ModeDucking && p.Policy.Mode != ModeSimple {
		return "", nil, fmt.Errorf("mix: mode must be %q or %q, got %q", ModeDucking, ModeSimple, p.Policy.Mode)
	}
	if len(p.Segments) == 0 {
		return "", nil, fmt.Errorf("mix: no TTS segments to place")
	}

	inputs = append(inputs, p.Inputs.VideoPath)
	ttsInputStart := len(inputs)
	for _, seg := range p.Segments {
		inputs = append(inputs, seg.Path)
	}

	var parts []string
	sidechain := p.Policy.Mode == ModeDucking && !p.Policy.MuteOriginal
	parts = append(parts, dubTimelineChain(ttsInputStart, p.Segments, p.Policy.TTSVolume, sidechain)...)

	nextIdx := len(inputs)
	var bgChain string
	if p.Inputs.HasAccompaniment {
		inputs = append(inputs, p.Inputs.AccompanimentPath)
		bgChain = fmt.Sprintf("[%d:a]volume=%g[bg]", nextIdx, p.Policy.AccompanimentVolume)
		nextIdx++
	} else {
		bgChain = "[0:a]anull[bg]"
	}
	parts = append(parts, bgChain)

	if p.Policy.MuteOriginal {
		parts = append(parts, "[bg][dub]amix=inputs=2:duration=longest:weights=1 3[mix]")
	} else {
		var origChain string
		if p.Inputs.HasVocals {
			inputs = append(inputs, p.Inputs.VocalsPath)
			origChain = fmt.Sprintf("[%d:a]volume=%g[orig]", nextIdx, p.Policy.VocalsVolume)
			nextIdx++
		} else {
			origChain = fmt.Sprintf("[0:a]volume=%g[orig]", p.Policy.VocalsVolume)
		}
		parts = append(parts, origChain)

		var duckChain string
		if p.Policy.Mode == ModeDucking {
			duckChain = fmt.Sprintf(
				"[orig][dub_sc]sidechaincompress=threshold=%g:ratio=%g:attack=%g:release=%g:detection=peak:link=maximum[orig_duck]",
				p.Policy.DuckThreshold, p.Policy.DuckRatio, p.Policy.DuckAttackMs, p.Policy.DuckReleaseMs,
			)
		} else {
			duckChain = "[orig]anull[orig_duck]"
		}
		parts = append(parts, duckChain)
		parts = append(parts, "[bg][orig_duck][dub]amix=inputs=3:duration=longest:weights=1 1 3[mix]")
	}

	parts = append(parts, fmt.Sprintf("[mix]loudnorm=I=%g:TP=%g:LRA=11:linear=true[final]", p.Policy.TargetLUFS, p.Policy.TruePeak))

	return strings.Join(parts, ";"), inputs, nil
}

// dubTimelineChain builds the adelay-per-segment + amix chain that places
// every TTS WAV at its start_ms and folds them into a single [dub] stream
// (and, when sidechain is set for ducking mode, an identical [dub_sc]
// sidechain key via asplit).
func dubTimelineChain(firstInputIdx int, segments []SegmentPlacement, ttsVolume float64, sidechain bool) []string {
	var delays []string
	var labels []string
	for i, seg := range segments {
		inputIdx := firstInputIdx + i
		label := fmt.Sprintf("d%d", i)
		delays = append(delays, fmt.Sprintf("[%d:a]adelay=%d|%d[%s]", inputIdx, seg.StartMs, seg.StartMs, label))
		labels = append(labels, fmt.Sprintf("[%s]", label))
	}

	var merge string
	if len(segments) == 1 {
		merge = fmt.Sprintf("%svolume=%g[dub_pre]", labels[0], ttsVolume)
	} else {
		merge = fmt.Sprintf("%samix=inputs=%d:duration=longest:dropout_transition=0,volume=%g[dub_pre]", strings.Join(labels, ""), len(segments), ttsVolume)
	}

	split := "[dub_pre]anull[dub]"
	if sidechain {
		split = "[dub_pre]asplit=2[dub][dub_sc]"
	}

	return append(delays, merge, split)
}

// Runner executes the built filtergraph against ffmpeg.
type Runner interface {
	RunFilterComplex(ctx context.Context, inputs []string, filterComplex string, outputMaps []string, videoCodec, audioCodec, outputPath string) error
}

// Run builds the filtergraph for p and invokes r to produce the final
// mixed audio track (no video stream) at p.OutputPath; burn is the phase
// that muxes this back against the source video.
func Run(ctx context.Context, r Runner, p Plan) error {
	filterComplex, inputs, err := BuildFilterComplex(p)
	if err != nil {
		return err
	}
	return r.RunFilterComplex(ctx, inputs, filterComplex, []string{"[final]"}, "", "pcm_s16le", p.OutputPath)
}
