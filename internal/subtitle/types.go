// Package subtitle defines the Subtitle Model — the pipeline's single
// source of truth for per-episode transcription — and its derived English
// view. The model is built once by the sub phase and never mutated by any
// later phase.
package subtitle

// Word is a single ASR-recognized token with its time span. Punctuation at
// utterance level is redistributed onto the last word it follows; see
// AttachPunctuation.
type Word struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

// EmotionInfo is an optional aggregated emotion tag carried at the
// utterance level only.
type EmotionInfo struct {
	Label  string   `json:"label"`
	Score  *float64 `json:"score,omitempty"`
	Degree *float64 `json:"degree,omitempty"`
}

// Utterance is the ASR-native utterance shape, consumed only as input to
// normalization; it is never persisted directly.
type Utterance struct {
	Speaker string       `json:"speaker"`
	StartMs int64        `json:"start_ms"`
	EndMs   int64        `json:"end_ms"`
	Text    string       `json:"text"`
	Words   []Word       `json:"words,omitempty"`
	Emotion *EmotionInfo `json:"emotion,omitempty"`
	Gender  string       `json:"gender,omitempty"`
}

// CueSource is the language-tagged text of a single cue.
type CueSource struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// Cue is a single displayable subtitle line within its parent utterance.
// It has no speaker and no id; its position within the parent utterance's
// cues slice is its identity.
type Cue struct {
	StartMs int64     `json:"start_ms"`
	EndMs   int64     `json:"end_ms"`
	Source  CueSource `json:"source"`
}

// SpeechRate carries the utterance's measured Chinese tokens-per-second.
type SpeechRate struct {
	ZhTPS float64 `json:"zh_tps"`
}

// SubtitleUtterance is one rebuilt, viewing-oriented utterance in the SSOT.
//
// Invariants (enforced by the builder, not re-validated on load):
//   - StartMs == Cues[0].StartMs, EndMs == Cues[len(Cues)-1].EndMs.
//   - Cues[i].EndMs <= Cues[i+1].StartMs.
//   - Utterances do not overlap in time with any sibling.
type SubtitleUtterance struct {
	UttID      string       `json:"utt_id"`
	Speaker    string       `json:"speaker"`
	StartMs    int64        `json:"start_ms"`
	EndMs      int64        `json:"end_ms"`
	SpeechRate SpeechRate   `json:"speech_rate"`
	Emotion    *EmotionInfo `json:"emotion,omitempty"`
	Cues       []Cue        `json:"cues"`
}

// SchemaInfo tags a persisted document with its schema name and version.
type SchemaInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// AudioInfo carries the episode's probed audio duration.
type AudioInfo struct {
	DurationMs int64 `json:"duration_ms"`
}

// Model is the Subtitle Model (SSOT): written once by sub, read by every
// downstream phase, never mutated.
type Model struct {
	Schema     SchemaInfo          `json:"schema"`
	Audio      AudioInfo           `json:"audio"`
	Utterances []SubtitleUtterance `json:"utterances"`
}

// CurrentSchema is the schema this package writes, matching the original
// build_subtitle_model.py's "subtitle.model" v1.2 document.
var CurrentSchema = SchemaInfo{Name: "subtitle.model", Version: "1.2"}
