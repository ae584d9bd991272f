package phases

import (
	"context"
	"fmt"

	"github.com/reelsub/dubpipe/internal/pipeline/phase"
)

// AudioExtractor demuxes a video's audio track to the canonical 16 kHz
// mono PCM WAV format. internal/media/ffmpeg.Runner satisfies this.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputPath string) error
}

// DemuxPhase extracts the episode's mono audio track from its source
// video. Apart from mix and burn, which also read video_path, every later
// phase works from demux.audio rather than the video.
type DemuxPhase struct {
	Ops AudioExtractor
}

func (p *DemuxPhase) Name() string      { return "demux" }
func (p *DemuxPhase) Version() string   { return "1" }
func (p *DemuxPhase) Requires() []string { return nil }
func (p *DemuxPhase) Provides() []string { return []string{"demux.audio"} }

func (p *DemuxPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	videoPath, _ := ctx.Config["video_path"].(string)
	if videoPath == "" {
		return phase.Failed(fmt.Errorf("demux: config.video_path is not set"))
	}

	out := outputs["demux.audio"]
	if err := p.Ops.ExtractAudio(ctx.Ctx, videoPath, out); err != nil {
		return phase.Failed(fmt.Errorf("demux: extract audio: %w", err))
	}
	return phase.Succeeded([]string{"demux.audio"})
}
