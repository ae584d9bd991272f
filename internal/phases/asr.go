package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	adapterasr "github.com/reelsub/dubpipe/internal/adapter/asr"
	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
	"github.com/reelsub/dubpipe/internal/pipeline/phase"
	"github.com/reelsub/dubpipe/internal/subtitle"
)

// Uploader gives asr a URL the cloud recognizer can fetch the audio from.
// internal/adapter/objectstore.Store satisfies this.
type Uploader interface {
	Upload(ctx context.Context, localPath, prefix string, overwrite bool, expiresSeconds int) (string, error)
}

// ASRPhase submits the 16 kHz mono vocals downmix that sep writes beside
// the vocals stem (vocals-16k.wav) for cloud transcription and persists the
// provider-agnostic utterance list sub consumes. The provider's own
// response body is not stored.
type ASRPhase struct {
	Uploader     Uploader
	Client       adapterasr.Client
	ResourceID   string
	Language     string
	PollInterval time.Duration
	MaxWait      time.Duration
}

func (p *ASRPhase) Name() string       { return "asr" }
func (p *ASRPhase) Version() string    { return "1" }
func (p *ASRPhase) Requires() []string { return []string{"sep.vocals"} }
func (p *ASRPhase) Provides() []string { return []string{"asr.asr_result"} }

// ASRRawRecord is the persisted subs/asr-raw-response.json shape: the
// provider-agnostic utterances plus enough provenance to audit a rerun.
type ASRRawRecord struct {
	ResourceID string                 `json:"resource_id"`
	Language   string                 `json:"language"`
	Utterances []adapterasr.Utterance `json:"utterances"`
}

func (p *ASRPhase) Run(ctx phase.RunContext, inputs phase.ResolvedInputs, outputs phase.ResolvedOutputs) phase.Result {
	vocalsPath := filepath.Join(filepath.Dir(inputs["sep.vocals"]), "vocals-16k.wav")

	audioURL, err := p.Uploader.Upload(ctx.Ctx, vocalsPath, "asr-input", false, 0)
	if err != nil {
		return phase.Failed(fmt.Errorf("asr: upload %s: %w", vocalsPath, err))
	}

	req := adapterasr.Request{
		AudioURL:   audioURL,
		Format:     "wav",
		SampleRate: 16000,
		Language:   p.Language,
		EnableITN:  true,
		EnablePunc: true,
	}

	utterances, err := adapterasr.SubmitAndPoll(ctx.Ctx, p.Client, req, p.ResourceID, p.PollInterval, p.MaxWait)
	if err != nil {
		return phase.Failed(fmt.Errorf("asr: %w", err))
	}

	record := ASRRawRecord{ResourceID: p.ResourceID, Language: p.Language, Utterances: utterances}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return phase.Failed(fmt.Errorf("asr: marshal raw response: %w", err))
	}
	if err := fingerprint.AtomicWrite(data, outputs["asr.asr_result"]); err != nil {
		return phase.Failed(fmt.Errorf("asr: write raw response: %w", err))
	}

	return phase.Succeeded([]string{"asr.asr_result"})
}

// toSubtitleUtterances converts the provider-agnostic ASR utterances into
// subtitle.Utterance, the shape sub's Build consumes.
func toSubtitleUtterances(in []adapterasr.Utterance) []subtitle.Utterance {
	out := make([]subtitle.Utterance, 0, len(in))
	for _, u := range in {
		words := make([]subtitle.Word, 0, len(u.Words))
		for _, w := range u.Words {
			words = append(words, subtitle.Word{StartMs: w.StartMs, EndMs: w.EndMs, Text: w.Text})
		}
		out = append(out, subtitle.Utterance{
			Speaker: u.SpeakerID,
			StartMs: u.StartMs,
			EndMs:   u.EndMs,
			Text:    u.Text,
			Words:   words,
		})
	}
	return out
}
