// Package pcm adapts this module's own audio primitives (Format, the
// pkg/audio/resampler resampler) to the pipeline's one PCM need outside of ffmpeg:
// producing the 16 kHz mono downmix ASR requires from whatever rate/
// channel layout demux or sep produced.
package pcm

import (
	"bytes"
	"io"

	"github.com/reelsub/dubpipe/pkg/audio/resampler"
)

// ASRSampleRate is the sample rate ASR providers in this pipeline expect.
const ASRSampleRate = 16000

// SourceFormat describes the PCM layout of audio read from r before
// downmixing.
type SourceFormat struct {
	SampleRate int
	Stereo     bool
}

// DownmixTo16kMono resamples and/or downmixes src (raw s16le PCM, no WAV
// header) to 16 kHz mono s16le PCM, matching the `vocals-16k.wav`/
// `raw-16k.wav` ASR inputs in the workspace layout.
func DownmixTo16kMono(src io.Reader, srcFmt SourceFormat) ([]byte, error) {
	rs, err := resampler.New(src,
		resampler.Format{SampleRate: srcFmt.SampleRate, Stereo: srcFmt.Stereo},
		resampler.Format{SampleRate: ASRSampleRate, Stereo: false},
	)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out bytes.Buffer
	buf := make([]byte, 32*1024)
	for {
		n, err := rs.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return out.Bytes(), nil
}
