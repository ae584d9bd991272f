package phases

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/reelsub/dubpipe/internal/media/pcm"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
)

// Separator splits a mono audio track into its vocal and background
// (accompaniment) components. It is an out-of-core external collaborator;
// CommandSeparator below is the only implementation this module provides.
type Separator interface {
	Separate(ctx context.Context, inputPath, vocalsOutPath, accompanimentOutPath string) error
}

// CommandSeparator invokes an external source-separation CLI tool as a
// subprocess, in the same spirit as internal/media/ffmpeg.Runner wraps
// ffmpeg: the tool is given an input file and two output paths and is
// trusted to honor them.
type CommandSeparator struct {
	BinPath string
	Args    []string // extra args inserted before the positional in/vocals/accompaniment paths
}

func (c CommandSeparator) Separate(ctx context.Context, inputPath, vocalsOutPath, accompanimentOutPath string) error {
	bin := c.BinPath
	if bin == "" {
		bin = "vocal-separate"
	}
	args := append(append([]string(nil), c.Args...), inputPath, vocalsOutPath, accompanimentOutPath)
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sep: %s: %w: %s", bin, err, out)
	}
	return nil
}

// RawPCMExtractor and probe are the two collaborators sep needs to build
// the 16 kHz mono downmixes ASR consumes, independent of whatever rate the
// separator emits its stems at.
type RawPCMExtractor interface {
	ExtractRawPCM(ctx context.Context, inputPath, outputPath string, sampleRate, channels int) error
}

type AudioFormatProber func(ctx context.Context, path string) (sampleRate, channels int, err error)

// SepPhase produces vocals/accompaniment stems from the demuxed audio, plus
// the 16 kHz mono downmixes (vocals-16k.wav, raw-16k.wav) the asr phase
// reads from, regardless of the separator's native output format.
type SepPhase struct {
	Separator Separator
	PCM       RawPCMExtractor
	ProbeFmt  AudioFormatProber
}

func (p *SepPhase) Name() string       { return "sep" }
func (p *SepPhase) Version() string    { return "1" }
func (p *SepPhase) Requires() []string { return []string{"demux.audio"} }
func (p *SepPhase) Provides() []string { return []string{"sep.vocals", "sep.accompaniment"} }

func (p *SepPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	demuxed := inputs["demux.audio"]
	vocalsOut := outputs["sep.vocals"]
	accompanimentOut := outputs["sep.accompaniment"]

	if err := p.Separator.Separate(ctx.Ctx, demuxed, vocalsOut, accompanimentOut); err != nil {
		return phase.Failed(fmt.Errorf("sep: %w", err))
	}

	audioDir := filepath.Dir(vocalsOut)
	if err := p.downmixTo16k(ctx.Ctx, vocalsOut, filepath.Join(audioDir, "vocals-16k.wav")); err != nil {
		return phase.Failed(err)
	}
	if err := p.downmixTo16k(ctx.Ctx, demuxed, filepath.Join(audioDir, "raw-16k.wav")); err != nil {
		return phase.Failed(err)
	}

	return phase.Succeeded([]string{"sep.vocals", "sep.accompaniment"})
}

// downmixTo16k probes srcPath's native format, dumps it as raw PCM, and
// resamples/downmixes it to 16 kHz mono before re-wrapping as a WAV at
// dstPath, reusing internal/media/pcm rather than re-deriving ffmpeg's own
// (coarser) resampling for this ASR-specific path.
func (p *SepPhase) downmixTo16k(ctx context.Context, srcPath, dstPath string) error {
	sampleRate, channels, err := p.ProbeFmt(ctx, srcPath)
	if err != nil {
		return fmt.Errorf("sep: probe %s: %w", srcPath, err)
	}

	rawPath := dstPath + ".raw"
	if err := p.PCM.ExtractRawPCM(ctx, srcPath, rawPath, sampleRate, channels); err != nil {
		return fmt.Errorf("sep: extract raw pcm from %s: %w", srcPath, err)
	}
	defer os.Remove(rawPath)

	raw, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("sep: open raw pcm %s: %w", rawPath, err)
	}
	defer raw.Close()

	downmixed, err := pcm.DownmixTo16kMono(raw, pcm.SourceFormat{SampleRate: sampleRate, Stereo: channels == 2})
	if err != nil {
		return fmt.Errorf("sep: downmix %s: %w", srcPath, err)
	}

	wav := pcm.WrapAsWAV(downmixed, pcm.ASRSampleRate, 1, 16)
	if err := os.WriteFile(dstPath, wav, 0o644); err != nil {
		return fmt.Errorf("sep: write %s: %w", dstPath, err)
	}
	return nil
}
