package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reelsub/dubpipe/internal/align"
	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
	"github.com/reelsub/dubpipe/internal/tts"
)

// VoiceTable resolves the TTS voice and prosody for a dub utterance's
// speaker/gender. Voice casting is an out-of-core concern; this module
// treats it as a pure lookup function supplied by the caller.
type VoiceTable func(speaker, gender string) tts.VoiceResolution

// FFmpegAudioOps is the subset of internal/media/ffmpeg.Runner's
// ctx-taking methods tts's ctx-free AudioOps contract binds against once
// per phase run.
type FFmpegAudioOps interface {
	TrimSilence(ctx context.Context, inputPath, outputPath string) error
	PadTo(ctx context.Context, inputPath, outputPath string, targetMs int64) error
	ApplyRateAndPad(ctx context.Context, inputPath, outputPath string, rate float64, targetMs int64) error
	CreateSilentAudio(ctx context.Context, outputPath string, duration time.Duration) error
}

// ctxAudioOps adapts FFmpegAudioOps to tts.AudioOps by closing over one
// phase run's context and converting the millisecond durations tts.Deps
// uses into ffmpeg's time.Duration.
type ctxAudioOps struct {
	ctx context.Context
	ops FFmpegAudioOps
}

func (a ctxAudioOps) TrimSilence(inputPath, outputPath string) error {
	return a.ops.TrimSilence(a.ctx, inputPath, outputPath)
}

func (a ctxAudioOps) PadTo(inputPath, outputPath string, targetMs int64) error {
	return a.ops.PadTo(a.ctx, inputPath, outputPath, targetMs)
}

func (a ctxAudioOps) ApplyRateAndPad(inputPath, outputPath string, rate float64, targetMs int64) error {
	return a.ops.ApplyRateAndPad(a.ctx, inputPath, outputPath, rate, targetMs)
}

func (a ctxAudioOps) CreateSilentAudio(outputPath string, durationMs int64) error {
	return a.ops.CreateSilentAudio(a.ctx, outputPath, time.Duration(durationMs)*time.Millisecond)
}

// FFprobeDuration is the ctx-taking duration prober internal/media/probe
// exposes, bound to an ffprobe binary path once by the caller.
type FFprobeDuration func(ctx context.Context, path string) (int64, error)

// TTSPhase synthesizes every DubUtterance's English line into a
// fit-or-fail WAV segment, content-addressed through a shared cache
// directory shared across episodes.
type TTSPhase struct {
	Synth         tts.Synthesizer
	ProbeDuration FFprobeDuration
	Ops           FFmpegAudioOps
	Voices        VoiceTable
	CacheDir      string
	Engine        string
	EngineVer     string
	Lang          string
	Format        string
	SampleRate    int
	Channels      int
}

func (p *TTSPhase) Name() string       { return "tts" }
func (p *TTSPhase) Version() string    { return "1" }
func (p *TTSPhase) Requires() []string { return []string{"dub.dub_manifest"} }
func (p *TTSPhase) Provides() []string { return []string{"tts.segments", "tts.tts_report"} }

func (p *TTSPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	raw, err := os.ReadFile(inputs["dub.dub_manifest"])
	if err != nil {
		return phase.Failed(fmt.Errorf("tts: read dub manifest: %w", err))
	}
	var manifest align.DubManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return phase.Failed(fmt.Errorf("tts: parse dub manifest: %w", err))
	}

	segmentsDir := filepath.Dir(outputs["tts.tts_report"])
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return phase.Failed(fmt.Errorf("tts: create segments dir: %w", err))
	}
	cacheDir := p.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(ctx.Workspace, "cache")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return phase.Failed(fmt.Errorf("tts: create cache dir: %w", err))
	}
	indexPath := filepath.Join(cacheDir, "index.msgpack")

	index, err := tts.LoadCacheIndex(indexPath)
	if err != nil {
		return phase.Failed(fmt.Errorf("tts: load cache index: %w", err))
	}

	deps := tts.Deps{
		Synth: p.Synth,
		Probe: func(path string) (int64, error) { return p.ProbeDuration(ctx.Ctx, path) },
		Ops:   ctxAudioOps{ctx: ctx.Ctx, ops: p.Ops},
		Paths: func(uttID, cacheKey string) tts.CachePaths {
			return tts.CachePaths{
				CacheFile:   filepath.Join(cacheDir, cacheKey+".wav"),
				RawFile:     filepath.Join(segmentsDir, uttID+".raw.wav"),
				TrimmedFile: filepath.Join(segmentsDir, uttID+".trimmed.wav"),
				SegmentFile: filepath.Join(segmentsDir, "seg_"+uttID+".wav"),
			}
		},
		CacheExists: func(cacheFile string) bool {
			_, err := os.Stat(cacheFile)
			return err == nil
		},
		CopyFile:   copyFile,
		WriteCache: copyFile,
	}

	report := tts.Report{AudioDurationMs: manifest.AudioDurationMs, SegmentsDir: "tts"}
	for _, utt := range manifest.Utterances {
		voice := p.Voices(utt.Speaker, utt.Gender)
		cacheKey, err := tts.CacheKey(tts.CacheKeyInput{
			Engine: p.Engine, EngineVer: p.EngineVer, Voice: voice.VoiceID,
			Lang: voice.Lang, Format: p.Format, SampleRate: p.SampleRate,
			Channels: p.Channels, Prosody: voice.Prosody, NormalizedText: utt.TextEn,
		})
		if err != nil {
			return phase.Failed(fmt.Errorf("tts: compute cache key for %s: %w", utt.UttID, err))
		}

		seg := tts.SynthesizeSegment(utt, voice, cacheKey, deps)
		report.Segments = append(report.Segments, seg)

		if seg.Status == tts.StatusFailed {
			continue
		}
		if _, cached := index[cacheKey]; cached {
			continue
		}
		if info, statErr := os.Stat(filepath.Join(cacheDir, cacheKey+".wav")); statErr == nil {
			index[cacheKey] = tts.CacheIndexEntry{
				Engine: p.Engine, EngineVer: p.EngineVer, Voice: voice.VoiceID,
				Bytes: info.Size(),
			}
		}
	}

	if err := index.Save(indexPath); err != nil {
		return phase.Failed(fmt.Errorf("tts: save cache index: %w", err))
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return phase.Failed(fmt.Errorf("tts: marshal report: %w", err))
	}
	if err := fingerprint.AtomicWrite(reportJSON, outputs["tts.tts_report"]); err != nil {
		return phase.Failed(fmt.Errorf("tts: write report: %w", err))
	}

	return phase.Succeeded([]string{"tts.segments", "tts.tts_report"})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
