package phases

import (
	"context"
	"fmt"

	"github.com/reelsub/dubpipe/internal/pipeline/phase"
)

// Muxer replaces a video's audio track and burns a subtitle file into the
// video stream. internal/media/ffmpeg.Runner satisfies this.
type Muxer interface {
	MuxAndBurnSubtitles(ctx context.Context, videoPath, audioPath, srtPath, outputPath string) error
}

// BurnPhase produces the final deliverable: the source video with its
// audio replaced by mix.audio and subs.en_srt burned in.
type BurnPhase struct {
	Ops Muxer
}

func (p *BurnPhase) Name() string       { return "burn" }
func (p *BurnPhase) Version() string    { return "1" }
func (p *BurnPhase) Requires() []string { return []string{"mix.audio", "subs.en_srt"} }
func (p *BurnPhase) Provides() []string { return []string{"burn.video"} }

func (p *BurnPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	videoPath, _ := ctx.Config["video_path"].(string)
	if videoPath == "" {
		return phase.Failed(fmt.Errorf("burn: config.video_path is not set"))
	}

	out := outputs["burn.video"]
	if err := p.Ops.MuxAndBurnSubtitles(ctx.Ctx, videoPath, inputs["mix.audio"], inputs["subs.en_srt"], out); err != nil {
		return phase.Failed(fmt.Errorf("burn: %w", err))
	}
	return phase.Succeeded([]string{"burn.video"})
}
