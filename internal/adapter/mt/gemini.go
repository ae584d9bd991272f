package mt

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	dubmt "github.com/reelsub/dubpipe/internal/mt"
)

// GeminiClient is a single-shot text-completion translate_fn over the
// Gemini API.
type GeminiClient struct {
	Client      *genai.Client
	Model       string
	Temperature float32
}

// Translate implements [dubmt.TranslateFunc].
func (c *GeminiClient) Translate(ctx context.Context, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if c.Temperature > 0 {
		cfg = &genai.GenerateContentConfig{Temperature: &c.Temperature}
	}

	resp, err := c.Client.Models.GenerateContent(ctx, c.Model, genai.Text(prompt), cfg)
	if err != nil {
		if isGeminiModelNotFound(err) {
			return "", &NotSupportedError{Model: c.Model, Cause: err}
		}
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errNoCandidates
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// AsTranslateFunc adapts c to [dubmt.TranslateFunc].
func (c *GeminiClient) AsTranslateFunc() dubmt.TranslateFunc {
	return c.Translate
}

func isGeminiModelNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "404")
}

var errNoCandidates = errors.New("mt: gemini response had no candidates")
