// Package ffmpeg wraps the ffmpeg command-line tool as the
// pipeline's out-of-core audio collaborator: silence trimming, padding,
// tempo adjustment, and filtergraph-based mixing all run as subprocesses
// rather than as hand-rolled DSP in this process.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CacheSampleRate and CacheChannels are the canonical TTS cache format:
// 24 kHz mono 16-bit PCM WAV.
const (
	CacheSampleRate = 24000
	CacheChannels   = 1
)

// DefaultTimeout bounds any single ffmpeg invocation.
const DefaultTimeout = 60 * time.Second

// Runner invokes ffmpeg subprocesses. Its zero value uses "ffmpeg" from
// PATH with DefaultTimeout; tests substitute BinPath with a stub script.
type Runner struct {
	BinPath string
	Timeout time.Duration
}

func (r Runner) binPath() string {
	if r.BinPath == "" {
		return "ffmpeg"
	}
	return r.BinPath
}

func (r Runner) timeout() time.Duration {
	if r.Timeout == 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r Runner) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binPath(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %v args=%v: %s", err, args, stderr.String())
	}
	return nil
}

// CreateSilentAudio writes duration of digital silence in the canonical
// cache format.
func (r Runner) CreateSilentAudio(ctx context.Context, outputPath string, duration time.Duration) error {
	return r.run(ctx,
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", CacheSampleRate),
		"-t", fmt.Sprintf("%.3f", duration.Seconds()),
		"-ar", itoa(CacheSampleRate),
		"-ac", itoa(CacheChannels),
		"-sample_fmt", "s16",
		"-y", outputPath,
	)
}

// NormalizeFormat converts inputPath to the canonical cache sample rate,
// channel count, and 16-bit sample format.
func (r Runner) NormalizeFormat(ctx context.Context, inputPath, outputPath string) error {
	return r.run(ctx,
		"-i", inputPath,
		"-ar", itoa(CacheSampleRate),
		"-ac", itoa(CacheChannels),
		"-sample_fmt", "s16",
		"-y", outputPath,
	)
}

// TrimSilence removes leading and trailing silence by reversing, trimming
// the (now leading) silence from each end, and reversing back. Speech in
// the interior is untouched.
func (r Runner) TrimSilence(ctx context.Context, inputPath, outputPath string) error {
	const filter = "areverse," +
		"silenceremove=start_periods=1:start_duration=0:start_threshold=-40dB," +
		"areverse," +
		"silenceremove=start_periods=1:start_duration=0:start_threshold=-40dB"
	return r.run(ctx,
		"-i", inputPath,
		"-af", filter,
		"-y", outputPath,
	)
}

// PadTo pads inputPath with trailing digital silence until it reaches
// targetMs. Input already longer than targetMs is cut to targetMs. The
// output is always re-encoded at CacheSampleRate/CacheChannels.
func (r Runner) PadTo(ctx context.Context, inputPath, outputPath string, targetMs int64) error {
	targetSec := float64(targetMs) / 1000.0
	return r.run(ctx,
		"-i", inputPath,
		"-af", fmt.Sprintf("apad=whole_dur=%.3f", targetSec),
		"-t", fmt.Sprintf("%.3f", targetSec),
		"-ar", itoa(CacheSampleRate),
		"-ac", itoa(CacheChannels),
		"-y", outputPath,
	)
}

// ApplyRateAndPad applies a tempo change (chained across atempo's 0.5..2.0
// supported range as needed) and pads/trims the result to exactly
// targetMs.
func (r Runner) ApplyRateAndPad(ctx context.Context, inputPath, outputPath string, rate float64, targetMs int64) error {
	filterStr := atempoChain(rate)
	targetSec := float64(targetMs) / 1000.0
	return r.run(ctx,
		"-i", inputPath,
		"-af", fmt.Sprintf("%s,apad=whole_dur=%.3f", filterStr, targetSec),
		"-t", fmt.Sprintf("%.3f", targetSec),
		"-ar", itoa(CacheSampleRate),
		"-ac", itoa(CacheChannels),
		"-y", outputPath,
	)
}

// atempoChain splits a tempo ratio outside ffmpeg's native [0.5, 2.0]
// atempo range into a chain of stages each within range.
func atempoChain(rate float64) string {
	var stages []float64
	switch {
	case rate > 2.0:
		remaining := rate
		for remaining > 2.0 {
			stages = append(stages, 2.0)
			remaining /= 2.0
		}
		stages = append(stages, remaining)
	case rate < 0.5:
		remaining := rate
		for remaining < 0.5 {
			stages = append(stages, 0.5)
			remaining /= 0.5
		}
		stages = append(stages, remaining)
	default:
		stages = append(stages, rate)
	}
	out := ""
	for i, s := range stages {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("atempo=%.6f", s)
	}
	return out
}

// PCMToWAV converts a raw headerless s16le PCM stream at srcSampleRate to
// the canonical cache WAV format.
func (r Runner) PCMToWAV(ctx context.Context, pcmPath string, srcSampleRate int, outputPath string) error {
	return r.run(ctx,
		"-f", "s16le",
		"-ar", itoa(srcSampleRate),
		"-ac", itoa(CacheChannels),
		"-i", pcmPath,
		"-ar", itoa(CacheSampleRate),
		"-ac", itoa(CacheChannels),
		"-sample_fmt", "s16",
		"-y", outputPath,
	)
}

// ExtractAudio demuxes videoPath's audio track to the canonical demux
// output format: 16 kHz mono 16-bit PCM WAV.
func (r Runner) ExtractAudio(ctx context.Context, videoPath, outputPath string) error {
	return r.run(ctx,
		"-i", videoPath,
		"-vn",
		"-ar", itoa(probeSampleRate16k),
		"-ac", "1",
		"-sample_fmt", "s16",
		"-y", outputPath,
	)
}

// ExtractRawPCM dumps inputPath's audio as headerless interleaved s16le
// PCM at sampleRate/channels, for callers (internal/media/pcm) that need
// raw samples rather than a WAV-wrapped file.
func (r Runner) ExtractRawPCM(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) error {
	return r.run(ctx,
		"-i", inputPath,
		"-f", "s16le",
		"-ar", itoa(sampleRate),
		"-ac", itoa(channels),
		"-y", outputPath,
	)
}

// MuxAndBurnSubtitles replaces videoPath's audio with audioPath's and
// burns srtPath into the video stream, producing the final dubbed-and-
// subtitled video. Burning subtitles forces a video re-encode (the
// subtitles filter cannot be applied with -c:v copy), so it uses libx264.
func (r Runner) MuxAndBurnSubtitles(ctx context.Context, videoPath, audioPath, srtPath, outputPath string) error {
	return r.run(ctx,
		"-i", videoPath,
		"-i", audioPath,
		"-filter_complex", fmt.Sprintf("[0:v]subtitles=%s[vout]", escapeFilterPath(srtPath)),
		"-map", "[vout]",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		"-y", outputPath,
	)
}

// escapeFilterPath escapes path characters the ffmpeg filtergraph parser
// treats specially (colon, backslash) so an absolute Windows-style or
// colon-bearing path survives as a subtitles= filter argument.
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, ":", `\:`)
	return escaped
}

const probeSampleRate16k = 16000

// RunFilterComplex executes an arbitrary ffmpeg filter_complex graph over
// the given inputs, mapping each entry of outputMaps (e.g. "0:v:0" or
// "[final]") to the output file. Used by internal/mix to build the final dubbed track.
func (r Runner) RunFilterComplex(ctx context.Context, inputs []string, filterComplex string, outputMaps []string, videoCodec, audioCodec, outputPath string) error {
	args := []string{}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", filterComplex)
	for _, m := range outputMaps {
		args = append(args, "-map", m)
	}
	if videoCodec != "" {
		args = append(args, "-c:v", videoCodec)
	}
	if audioCodec != "" {
		args = append(args, "-c:a", audioCodec)
	}
	args = append(args, "-y", outputPath)
	return r.run(ctx, args...)
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
