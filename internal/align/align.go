// Package align re-segments translated English text into the fixed time
// windows the ASR-derived SubtitleModel already established, and builds
// the DubManifest that tts and mix consume downstream. It never extends an
// utterance's end_ms: earlier designs that stretched per-utterance windows
// to fit long English compounded across an episode and pushed the dubbed
// track past the source video's length.
package align

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reelsub/dubpipe/internal/subtitle"
)

// DefaultTargetWPS is the words-per-second model used to re-segment English
// text inside a fixed utterance window.
const DefaultTargetWPS = 2.5

// MinChunkWords/MaxChunkWords bound a punctuation-free chunk split.
const (
	MinChunkWords = 8
	MaxChunkWords = 12
)

// MinTTSWindowMs is the utterance budget below which allow_extend_ms is
// automatically raised.
const MinTTSWindowMs = 900

// DefaultMaxExtendCapMs caps how far allow_extend_ms may be raised.
const DefaultMaxExtendCapMs = 800

// Translation pairs a single SSOT utterance id with the English text
// produced for it. mt_output.jsonl lines are mt.Output records, not this
// type.
type Translation struct {
	UttID string `json:"utt_id"`
	Text  string `json:"text"`
}

// Policy carries the tunable defaults align reads from phases.tts config.
type Policy struct {
	TargetWPS      float64
	MaxRate        float64
	AllowExtendMs  int64
	MinTTSWindowMs int64
	MaxExtendCapMs int64
}

// DefaultPolicy matches the spec's documented defaults (max_rate≈1.3,
// allow_extend_ms≈500).
func DefaultPolicy() Policy {
	return Policy{
		TargetWPS:      DefaultTargetWPS,
		MaxRate:        1.3,
		AllowExtendMs:  500,
		MinTTSWindowMs: MinTTSWindowMs,
		MaxExtendCapMs: DefaultMaxExtendCapMs,
	}
}

// TTSPolicy is the per-utterance tempo/extension contract handed to tts.
type TTSPolicy struct {
	MaxRate       float64 `json:"max_rate"`
	AllowExtendMs int64   `json:"allow_extend_ms"`
}

// DubUtterance is one entry of the DubManifest.
type DubUtterance struct {
	UttID     string              `json:"utt_id"`
	StartMs   int64               `json:"start_ms"`
	EndMs     int64               `json:"end_ms"`
	BudgetMs  int64               `json:"budget_ms"`
	TextZh    string              `json:"text_zh"`
	TextEn    string              `json:"text_en"`
	Speaker   string              `json:"speaker"`
	TTSPolicy TTSPolicy           `json:"tts_policy"`
	Emotion   *subtitle.EmotionInfo `json:"emotion,omitempty"`
	Gender    string              `json:"gender,omitempty"`
}

// DubManifest is written by align and read by tts and mix.
type DubManifest struct {
	AudioDurationMs int64          `json:"audio_duration_ms"`
	Utterances      []DubUtterance `json:"utterances"`
}

var namePlaceholderLeakRE = regexp.MustCompile(`<<NAME_\d+`)

var punctSplitRE = regexp.MustCompile(`(?:[.!?;:]+|,)\s+`)

func isPunctuationOrBlank(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// englishChunk is one re-segmented piece of an utterance's English text
// before time-scaling.
type englishChunk struct {
	text      string
	wordCount int
}

// splitEnglish splits text at punctuation boundaries, falling back to a
// words-per-chunk split of MinChunkWords..MaxChunkWords when no punctuation
// is present.
func splitEnglish(text string) []englishChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := punctSplitRE.Split(text, -1)
	var chunks []englishChunk
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chunks = append(chunks, englishChunk{text: p, wordCount: wordCount(p)})
	}
	if len(chunks) > 1 {
		return chunks
	}
	words := strings.Fields(text)
	if len(words) <= MaxChunkWords {
		return []englishChunk{{text: text, wordCount: len(words)}}
	}
	chunks = nil
	chunkSize := MaxChunkWords
	for start := 0; start < len(words); start += chunkSize {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		if end-start < MinChunkWords && start > 0 {
			chunks[len(chunks)-1].text += " " + strings.Join(words[start:end], " ")
			chunks[len(chunks)-1].wordCount += end - start
			break
		}
		chunk := strings.Join(words[start:end], " ")
		chunks = append(chunks, englishChunk{text: chunk, wordCount: end - start})
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// ResegmentUtterance splits English text into cues that fit exactly inside
// [startMs, endMs], using the words-per-second model to weight each chunk
// and scaling all estimates so the last cue ends precisely at endMs.
func ResegmentUtterance(text string, startMs, endMs int64, targetWPS float64) []subtitle.Cue {
	chunks := splitEnglish(text)
	if len(chunks) == 0 {
		return nil
	}
	uttDurMs := float64(endMs - startMs)
	if targetWPS <= 0 {
		targetWPS = DefaultTargetWPS
	}

	estimates := make([]float64, len(chunks))
	var sumEstimates float64
	for i, c := range chunks {
		words := float64(c.wordCount)
		if words <= 0 {
			words = 1
		}
		estimates[i] = words / targetWPS * 1000.0
		sumEstimates += estimates[i]
	}
	if sumEstimates <= 0 {
		sumEstimates = 1
	}
	scale := uttDurMs / sumEstimates

	cues := make([]subtitle.Cue, 0, len(chunks))
	cursor := startMs
	for i, c := range chunks {
		scaled := int64(estimates[i] * scale)
		var cueEnd int64
		if i == len(chunks)-1 {
			cueEnd = endMs
		} else {
			cueEnd = cursor + scaled
			if cueEnd >= endMs {
				cueEnd = endMs - 1
			}
		}
		cues = append(cues, subtitle.Cue{
			StartMs: cursor,
			EndMs:   cueEnd,
			Source:  subtitle.CueSource{Lang: "en", Text: c.text},
		})
		cursor = cueEnd
	}
	return cues
}

// enWPS computes words-per-second for an aligned utterance's full English
// text over its (fixed) time window.
func enWPS(text string, startMs, endMs int64) float64 {
	durSec := float64(endMs-startMs) / 1000.0
	if durSec <= 0 {
		return 0
	}
	return float64(wordCount(text)) / durSec
}

// clampExtend raises allow_extend_ms when the utterance window is below the
// minimum TTS window, capped at maxExtendCapMs.
func clampExtend(budgetMs, baseAllowExtendMs, minWindowMs, maxExtendCapMs int64) int64 {
	if budgetMs >= minWindowMs {
		return baseAllowExtendMs
	}
	needed := minWindowMs - budgetMs
	if needed < baseAllowExtendMs {
		needed = baseAllowExtendMs
	}
	if needed > maxExtendCapMs {
		needed = maxExtendCapMs
	}
	return needed
}

// Result is align's full output: the English view of the subtitle model,
// the DubManifest, and any warnings collected while skipping utterances.
type Result struct {
	Aligned  *subtitle.Model
	Manifest DubManifest
	Warnings []string
}

// Run implements spec §4.8: probe has already happened (audioDurationMs is
// passed in, not probed here, so this package stays free of subprocess
// concerns — see internal/media/probe for that), then each SSOT utterance
// is looked up in translations, re-segmented, and folded into both the
// AlignedSubtitle and the DubManifest.
func Run(ssot *subtitle.Model, translations map[string]string, audioDurationMs int64, policy Policy) (Result, error) {
	res := Result{
		Aligned: &subtitle.Model{
			Schema: subtitle.SchemaInfo{Name: "subtitle.align", Version: "1.3"},
			Audio:  subtitle.AudioInfo{DurationMs: audioDurationMs},
		},
		Manifest: DubManifest{AudioDurationMs: audioDurationMs},
	}

	for _, u := range ssot.Utterances {
		text, ok := translations[u.UttID]
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("align: utterance %s has no translation, skipping", u.UttID))
			continue
		}
		if isPunctuationOrBlank(text) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("align: utterance %s is punctuation-only, skipping", u.UttID))
			continue
		}
		if namePlaceholderLeakRE.MatchString(text) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("align: utterance %s still carries a name placeholder: %q", u.UttID, text))
		}

		cues := ResegmentUtterance(text, u.StartMs, u.EndMs, policy.TargetWPS)
		if len(cues) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("align: utterance %s produced no cues, skipping", u.UttID))
			continue
		}

		res.Aligned.Utterances = append(res.Aligned.Utterances, subtitle.SubtitleUtterance{
			UttID:      u.UttID,
			Speaker:    u.Speaker,
			StartMs:    u.StartMs,
			EndMs:      u.EndMs,
			SpeechRate: subtitle.SpeechRate{ZhTPS: enWPS(text, u.StartMs, u.EndMs)},
			Emotion:    u.Emotion,
			Cues:       cues,
		})

		budgetMs := u.EndMs - u.StartMs
		allowExtend := clampExtend(budgetMs, policy.AllowExtendMs, policy.MinTTSWindowMs, policy.MaxExtendCapMs)

		textZh := concatenateCues(u.Cues)

		res.Manifest.Utterances = append(res.Manifest.Utterances, DubUtterance{
			UttID:    u.UttID,
			StartMs:  u.StartMs,
			EndMs:    u.EndMs,
			BudgetMs: budgetMs,
			TextZh:   textZh,
			TextEn:   text,
			Speaker:  u.Speaker,
			TTSPolicy: TTSPolicy{
				MaxRate:       policy.MaxRate,
				AllowExtendMs: allowExtend,
			},
			Emotion: u.Emotion,
		})
	}

	if err := assertNoLeakedPlaceholders(res.Aligned); err != nil {
		return res, err
	}
	return res, nil
}

func concatenateCues(cues []subtitle.Cue) string {
	var b strings.Builder
	for _, c := range cues {
		b.WriteString(c.Source.Text)
	}
	return b.String()
}

// assertNoLeakedPlaceholders is the final hard check of spec §4.8 step 5:
// the English SRT must never contain a name placeholder.
func assertNoLeakedPlaceholders(aligned *subtitle.Model) error {
	srt := subtitle.RenderSRT(aligned)
	if namePlaceholderLeakRE.MatchString(srt) {
		return fmt.Errorf("align: rendered English SRT still contains a name placeholder")
	}
	return nil
}
