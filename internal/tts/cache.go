package tts

import (
	"regexp"
	"strings"

	"github.com/reelsub/dubpipe/internal/pipeline/fingerprint"
)

var whitespaceRunRE = regexp.MustCompile(`\s+`)

// NormalizeTextForCache collapses whitespace so equivalent text maps to the
// same cache key regardless of incidental spacing differences.
func NormalizeTextForCache(text string) string {
	return whitespaceRunRE.ReplaceAllString(strings.TrimSpace(text), " ")
}

// CacheKeyInput is canon-encoded and hashed to form the TTS cache key
// (spec §4.9 step 3).
type CacheKeyInput struct {
	Engine         string         `json:"engine"`
	EngineVer      string         `json:"engine_ver"`
	Voice          string         `json:"voice"`
	Lang           string         `json:"lang"`
	Format         string         `json:"format"`
	SampleRate     int            `json:"sample_rate"`
	Channels       int            `json:"channels"`
	Prosody        map[string]any `json:"prosody,omitempty"`
	NormalizedText string         `json:"normalized_text"`
}

// CacheKey computes sha256(canon(input)) as documented in spec §4.9.
func CacheKey(in CacheKeyInput) (string, error) {
	in.NormalizedText = NormalizeTextForCache(in.NormalizedText)
	return fingerprint.HashValue(in)
}
