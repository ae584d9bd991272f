// Package tts implements the streaming TTS client contract: a streaming
// POST that yields base64-decoded audio chunks until a terminator, and a
// PCM-to-WAV conversion into the cache's canonical 24 kHz mono 16-bit
// format.
package tts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/reelsub/dubpipe/internal/media/pcm"
	"github.com/reelsub/dubpipe/pkg/doubaospeech"
)

// CacheSampleRate and CacheChannels are the TTS cache's canonical PCM
// format; every provider's raw output is converted to this before caching.
const (
	CacheSampleRate = 24000
	CacheChannels   = 1
	bitsPerSample   = 16
)

// DoubaoClient synthesizes speech via doubaospeech's BigModel TTS
// streaming endpoint and returns a 24 kHz mono 16-bit WAV, satisfying
// internal/tts's Synthesizer contract (which has no context parameter;
// ctx is bound once at construction since a phase run owns one context
// for its whole duration).
type DoubaoClient struct {
	client     *doubaospeech.Client
	resourceID string
	format     string
	ctx        context.Context
}

// New builds a DoubaoClient bound to ctx for the lifetime of the phase run
// that owns it. resourceID selects the BigModel TTS resource (e.g.
// "seed-tts-2.0"). The client always requests format "pcm" so the adapter
// can wrap the raw samples in its own WAV header deterministically.
func New(ctx context.Context, client *doubaospeech.Client, resourceID string) *DoubaoClient {
	return &DoubaoClient{client: client, resourceID: resourceID, format: "pcm", ctx: ctx}
}

// Synthesize implements internal/tts.Synthesizer: it streams the
// synthesis request, collects chunks in order until the provider signals
// completion, and wraps the resulting PCM in a WAV header at
// CacheSampleRate/CacheChannels/16-bit.
func (c *DoubaoClient) Synthesize(text, voiceID string, prosody map[string]any) ([]byte, error) {
	req := &doubaospeech.TTSV2Request{
		Text:       text,
		Speaker:    voiceID,
		Format:     c.format,
		SampleRate: CacheSampleRate,
		ResourceID: c.resourceID,
	}
	applyProsody(req, prosody)

	var pcmBuf bytes.Buffer
	for chunk, err := range c.client.TTSV2.Stream(c.ctx, req) {
		if err != nil {
			return nil, fmt.Errorf("tts: stream %q: %w", voiceID, err)
		}
		pcmBuf.Write(chunk.Audio)
		if chunk.IsLast {
			break
		}
	}

	return pcm.WrapAsWAV(pcmBuf.Bytes(), CacheSampleRate, CacheChannels, bitsPerSample), nil
}

// applyProsody maps the generic prosody map onto the provider's named
// fields; unrecognized keys are ignored rather than rejected, since
// prosody vocabularies vary per provider and a strict contract here would
// make the adapter brittle to upstream vocabulary changes.
func applyProsody(req *doubaospeech.TTSV2Request, prosody map[string]any) {
	if v, ok := prosody["speed_ratio"].(float64); ok {
		req.SpeedRatio = v
	}
	if v, ok := prosody["volume_ratio"].(float64); ok {
		req.VolumeRatio = v
	}
	if v, ok := prosody["pitch_ratio"].(float64); ok {
		req.PitchRatio = v
	}
	if v, ok := prosody["emotion"].(string); ok {
		req.Emotion = v
	}
	if v, ok := prosody["language"].(string); ok {
		req.Language = v
	}
}
