package subtitle

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/reelsub/dubpipe/internal/subtitle/cue"
	"github.com/reelsub/dubpipe/internal/subtitle/normalize"
)

var speakerDigitsRE = regexp.MustCompile(`\d+`)

// NormalizeSpeakerID extracts the first run of digits from a raw speaker
// id and prefixes it with "spk_", e.g. "Speaker 2" -> "spk_2". A speaker id
// with no digits is mapped to "spk_0".
func NormalizeSpeakerID(speaker string) string {
	m := speakerDigitsRE.FindString(speaker)
	if m == "" {
		return "spk_0"
	}
	return "spk_" + m
}

// rawUtteranceMeta is the subset of an ASR-native utterance needed to
// recover its emotion/gender once words have been regrouped into
// viewing-oriented chunks.
type rawUtteranceMeta struct {
	startMs int64
	endMs   int64
	emotion *EmotionInfo
	gender  string
}

// Build constructs the Subtitle Model (SSOT) from a list of ASR-native
// utterances, following spec §4.4's four steps: extract words (with
// punctuation attach), rebuild visual utterances, construct cues and
// speech rate per utterance, and assemble the final model.
func Build(raw []Utterance, audioDurationMs int64, normParams normalize.Params, cueParams cue.Params) (*Model, normalize.Metrics) {
	var allWords []Word
	var metas []rawUtteranceMeta

	for _, u := range raw {
		words := append([]Word(nil), u.Words...)
		AttachPunctuation(u.Text, words)
		for _, w := range words {
			if w.EndMs <= w.StartMs {
				continue
			}
			if w.Text == "" {
				continue
			}
			if w.Speaker == "" {
				w.Speaker = u.Speaker
			}
			allWords = append(allWords, w)
		}
		metas = append(metas, rawUtteranceMeta{
			startMs: u.StartMs,
			endMs:   u.EndMs,
			emotion: u.Emotion,
			gender:  u.Gender,
		})
	}

	sort.SliceStable(allWords, func(i, j int) bool {
		if allWords[i].StartMs != allWords[j].StartMs {
			return allWords[i].StartMs < allWords[j].StartMs
		}
		return allWords[i].EndMs < allWords[j].EndMs
	})

	chunks, metrics := normalize.Normalize(allWords, normParams)

	utterances := make([]SubtitleUtterance, 0, len(chunks))
	for i, c := range chunks {
		cues := cue.Build(c.Words, cueParams)
		if len(cues) == 0 {
			continue
		}
		zhTPS := normalize.SpeechRateZhTPS(c.Words)
		utterances = append(utterances, SubtitleUtterance{
			UttID:      fmt.Sprintf("utt_%04d", i+1),
			Speaker:    NormalizeSpeakerID(c.Speaker),
			StartMs:    cues[0].StartMs,
			EndMs:      cues[len(cues)-1].EndMs,
			SpeechRate: SpeechRate{ZhTPS: zhTPS},
			Emotion:    dominantEmotion(c.StartMs(), c.EndMs(normParams), metas),
			Cues:       cues,
		})
	}

	model := &Model{
		Schema:     CurrentSchema,
		Audio:      AudioInfo{DurationMs: audioDurationMs},
		Utterances: utterances,
	}
	return model, metrics
}

// dominantEmotion returns the emotion of whichever raw utterance overlaps
// [startMs, endMs] the most, or nil if none overlap.
func dominantEmotion(startMs, endMs int64, metas []rawUtteranceMeta) *EmotionInfo {
	var best *EmotionInfo
	var bestOverlap int64
	for _, m := range metas {
		if m.emotion == nil {
			continue
		}
		lo := max64(startMs, m.startMs)
		hi := min64(endMs, m.endMs)
		overlap := hi - lo
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = m.emotion
		}
	}
	return best
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
