package mix

import (
	"strings"
	"testing"

	"github.com/reelsub/dubpipe/internal/align"
	"github.com/reelsub/dubpipe/internal/tts"
)

func TestBuildFilterComplexRequiresExplicitMode(t *testing.T) {
	_, _, err := BuildFilterComplex(Plan{
		Inputs:   Inputs{VideoPath: "v.mp4"},
		Segments: []SegmentPlacement{{Path: "seg.wav", StartMs: 0}},
	})
	if err == nil {
		t.Fatal("expected error when Policy.Mode is unset")
	}
}

func TestBuildFilterComplexDuckingMode(t *testing.T) {
	p := Plan{
		Inputs: Inputs{VideoPath: "v.mp4", HasAccompaniment: true, AccompanimentPath: "accomp.wav", HasVocals: true, VocalsPath: "vocals.wav"},
		Segments: []SegmentPlacement{
			{Path: "seg1.wav", StartMs: 0},
			{Path: "seg2.wav", StartMs: 2000},
		},
		Policy:     withMode(DefaultTunables(), ModeDucking, false),
		OutputPath: "out.mp4",
	}
	fc, inputs, err := BuildFilterComplex(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 5 { // video, seg1, seg2, accomp, vocals
		t.Fatalf("got %d inputs: %+v", len(inputs), inputs)
	}
	if !strings.Contains(fc, "sidechaincompress") {
		t.Fatalf("expected sidechaincompress in ducking mode: %s", fc)
	}
	if !strings.Contains(fc, "adelay=2000|2000") {
		t.Fatalf("expected second segment delayed by its start_ms: %s", fc)
	}
	if !strings.Contains(fc, "loudnorm") {
		t.Fatalf("expected single-pass loudnorm: %s", fc)
	}
}

func TestBuildFilterComplexSimpleModeNoSidechain(t *testing.T) {
	p := Plan{
		Inputs:     Inputs{VideoPath: "v.mp4"},
		Segments:   []SegmentPlacement{{Path: "seg1.wav", StartMs: 0}},
		Policy:     withMode(DefaultTunables(), ModeSimple, false),
		OutputPath: "out.mp4",
	}
	fc, _, err := BuildFilterComplex(p)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(fc, "sidechaincompress") {
		t.Fatalf("simple mode must not sidechain: %s", fc)
	}
}

func TestBuildFilterComplexMuteOriginalDropsVocalsChain(t *testing.T) {
	p := Plan{
		Inputs:     Inputs{VideoPath: "v.mp4"},
		Segments:   []SegmentPlacement{{Path: "seg1.wav", StartMs: 0}},
		Policy:     withMode(DefaultTunables(), ModeDucking, true),
		OutputPath: "out.mp4",
	}
	fc, _, err := BuildFilterComplex(p)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(fc, "[orig]") {
		t.Fatalf("mute_original must drop the vocals chain entirely: %s", fc)
	}
	if !strings.Contains(fc, "amix=inputs=2") {
		t.Fatalf("expected a 2-input mix (bg+dub) when muted: %s", fc)
	}
}

func withMode(p Policy, mode Mode, mute bool) Policy {
	p.Mode = mode
	p.MuteOriginal = mute
	return p
}

func TestSegmentsFromReportSkipsFailedAndMissing(t *testing.T) {
	manifest := align.DubManifest{
		Utterances: []align.DubUtterance{
			{UttID: "utt_0001", StartMs: 0},
			{UttID: "utt_0002", StartMs: 1000},
			{UttID: "utt_0003", StartMs: 2000},
		},
	}
	report := tts.Report{
		Segments: []tts.SegmentReport{
			{UttID: "utt_0001", Status: tts.StatusSuccess, OutputPath: "seg1.wav"},
			{UttID: "utt_0002", Status: tts.StatusFailed, Error: "too long"},
		},
	}
	placements, warnings := SegmentsFromReport(manifest, report)
	if len(placements) != 1 || placements[0].Path != "seg1.wav" {
		t.Fatalf("got %+v", placements)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected warnings for both the failed and the missing segment, got %+v", warnings)
	}
}
