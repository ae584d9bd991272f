// Package tts implements the per-utterance TTS fit-or-fail contract: every
// DubUtterance gets a synthesized WAV trimmed, rate-adjusted, or extended
// to fit its fixed time window, or is reported failed so mix can insert
// silence in its place. The phase never concatenates segments; that is
// mix's job.
package tts

import (
	"fmt"
	"os"

	"github.com/reelsub/dubpipe/internal/align"
)

// Status mirrors spec's TTSSegmentReport.status enum.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusRateAdjusted Status = "rate_adjusted"
	StatusExtended     Status = "extended"
	StatusFailed       Status = "failed"
)

// SegmentReport is emitted for every DubUtterance.
type SegmentReport struct {
	UttID      string  `json:"utt_id"`
	BudgetMs   int64   `json:"budget_ms"`
	RawMs      int64   `json:"raw_ms"`
	TrimmedMs  int64   `json:"trimmed_ms"`
	FinalMs    int64   `json:"final_ms"`
	Rate       float64 `json:"rate"`
	Status     Status  `json:"status"`
	OutputPath string  `json:"output_path"`
	Error      string  `json:"error,omitempty"`
}

// Report is the aggregate TTSReport written alongside the per-utterance
// WAVs.
type Report struct {
	AudioDurationMs int64           `json:"audio_duration_ms"`
	SegmentsDir     string          `json:"segments_dir"`
	Segments        []SegmentReport `json:"segments"`
}

// decision is the pure outcome of the fit-or-fail tree (spec §4.9 steps
// 5-6), computed from already-measured durations so it can be tested
// without touching a filesystem or subprocess.
type decision struct {
	status   Status
	rate     float64
	finalMs  int64
	errorMsg string
}

// decide implements the trim/pad/rate-adjust/extend/fail tree. trimmedMs
// must already reflect "no trim performed" (== rawMs) when rawMs <=
// budgetMs, per spec step 5's "trimming can clip speech" guard.
func decide(trimmedMs, budgetMs int64, maxRate float64, allowExtendMs int64) decision {
	if trimmedMs <= budgetMs {
		return decision{status: StatusSuccess, rate: 1.0, finalMs: budgetMs}
	}

	rate := float64(trimmedMs) / float64(budgetMs)
	if rate <= maxRate {
		return decision{status: StatusRateAdjusted, rate: rate, finalMs: budgetMs}
	}

	if allowExtendMs > 0 {
		extended := budgetMs + allowExtendMs
		extendedRate := float64(trimmedMs) / float64(extended)
		if extendedRate <= maxRate {
			return decision{status: StatusExtended, rate: extendedRate, finalMs: extended}
		}
		return decision{
			status: StatusFailed,
			rate:   extendedRate,
			errorMsg: fmt.Sprintf(
				"cannot fit %dms into %dms even at %.2fx rate (extended budget %dms)",
				trimmedMs, extended, maxRate, extended,
			),
		}
	}

	return decision{
		status: StatusFailed,
		rate:   rate,
		errorMsg: fmt.Sprintf(
			"cannot fit %dms into %dms budget, would need %.2fx rate (max %.2fx)",
			trimmedMs, budgetMs, rate, maxRate,
		),
	}
}

// Synthesizer produces raw TTS audio bytes for one utterance. Adapters
// (internal/adapter/tts) implement this against a specific provider.
type Synthesizer interface {
	Synthesize(text string, voiceID string, prosody map[string]any) ([]byte, error)
}

// DurationProber measures a WAV file's duration in milliseconds.
// internal/media/probe satisfies this once wrapped with a fixed ffprobe
// path.
type DurationProber func(path string) (int64, error)

// AudioOps is the set of subprocess-backed audio operations a segment may
// need: trim, pad, and combined rate-adjust-and-pad. internal/media/ffmpeg
// implements this.
type AudioOps interface {
	TrimSilence(inputPath, outputPath string) error
	PadTo(inputPath, outputPath string, targetMs int64) error
	ApplyRateAndPad(inputPath, outputPath string, rate float64, targetMs int64) error
	CreateSilentAudio(outputPath string, durationMs int64) error
}

// CachePaths resolves where a cached/raw/trimmed/final WAV for one
// utterance and cache key should live.
type CachePaths struct {
	CacheFile    string
	RawFile      string
	TrimmedFile  string
	SegmentFile  string
}

// Deps bundles the collaborators SynthesizeSegment needs so the fit-or-fail
// control flow itself stays unit-testable against fakes.
type Deps struct {
	Synth       Synthesizer
	Probe       DurationProber
	Ops         AudioOps
	Paths       func(uttID, cacheKey string) CachePaths
	CacheExists func(cacheFile string) bool
	CopyFile    func(src, dst string) error
	WriteCache  func(src, cacheFile string) error
}

// VoiceResolution is the voice/prosody pair resolved for an utterance's
// speaker via the (out-of-core) voice-assignment table.
type VoiceResolution struct {
	VoiceID string
	Lang    string
	Prosody map[string]any
}

// SynthesizeSegment implements spec §4.9 steps 1-7 for a single
// DubUtterance, given its already-resolved voice and a cache key built by
// the caller (see CacheKey).
func SynthesizeSegment(utt align.DubUtterance, voice VoiceResolution, cacheKey string, deps Deps) SegmentReport {
	report := SegmentReport{UttID: utt.UttID, BudgetMs: utt.BudgetMs}

	paths := deps.Paths(utt.UttID, cacheKey)
	report.OutputPath = paths.SegmentFile

	if isEmptyOrPunctuation(utt.TextEn) {
		if err := deps.Ops.CreateSilentAudio(paths.SegmentFile, utt.BudgetMs); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
		report.Status = StatusSuccess
		report.Rate = 1.0
		report.FinalMs = utt.BudgetMs
		return report
	}

	if deps.CacheExists(paths.CacheFile) {
		if err := deps.CopyFile(paths.CacheFile, paths.RawFile); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
	} else {
		audio, err := deps.Synth.Synthesize(utt.TextEn, voice.VoiceID, voice.Prosody)
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
		if err := writeFile(paths.RawFile, audio); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
		if err := deps.WriteCache(paths.RawFile, paths.CacheFile); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
	}

	rawMs, err := deps.Probe(paths.RawFile)
	if err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		return report
	}
	report.RawMs = rawMs

	trimmedMs := rawMs
	if rawMs > utt.BudgetMs {
		if err := deps.Ops.TrimSilence(paths.RawFile, paths.TrimmedFile); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
		trimmedMs, err = deps.Probe(paths.TrimmedFile)
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
	} else {
		if err := deps.CopyFile(paths.RawFile, paths.TrimmedFile); err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			return report
		}
	}
	report.TrimmedMs = trimmedMs

	d := decide(trimmedMs, utt.BudgetMs, utt.TTSPolicy.MaxRate, utt.TTSPolicy.AllowExtendMs)
	report.Status = d.status
	report.Rate = d.rate
	report.FinalMs = d.finalMs

	switch d.status {
	case StatusSuccess:
		err = deps.Ops.PadTo(paths.TrimmedFile, paths.SegmentFile, d.finalMs)
	case StatusRateAdjusted, StatusExtended:
		err = deps.Ops.ApplyRateAndPad(paths.TrimmedFile, paths.SegmentFile, d.rate, d.finalMs)
	case StatusFailed:
		report.Error = d.errorMsg
		err = deps.CopyFile(paths.TrimmedFile, paths.SegmentFile)
	}
	if err != nil && report.Status != StatusFailed {
		report.Status = StatusFailed
		report.Error = err.Error()
	}
	return report
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func isEmptyOrPunctuation(text string) bool {
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
