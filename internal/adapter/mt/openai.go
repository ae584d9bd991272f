package mt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"

	dubmt "github.com/reelsub/dubpipe/internal/mt"
)

var errNoChoices = errors.New("mt: openai response had no choices")

var nameCompletionSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"english_name": {Type: "string"},
	},
	Required:             []string{"english_name"},
	AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
}

type nameCompletionResult struct {
	EnglishName string `json:"english_name"`
}

// OpenAIClient is a single-shot chat-completion translate_fn over the
// OpenAI API: one prompt in, one response string out, no streaming, no
// tool calls.
type OpenAIClient struct {
	Client      *openai.Client
	Model       string
	Temperature float64
}

// Translate implements [dubmt.TranslateFunc].
func (c *OpenAIClient) Translate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if c.Temperature > 0 {
		params.Temperature = param.NewOpt(c.Temperature)
	}

	resp, err := c.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isModelNotFound(err) {
			return "", &NotSupportedError{Model: c.Model, Cause: err}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// AsTranslateFunc adapts c to [dubmt.TranslateFunc].
func (c *OpenAIClient) AsTranslateFunc() dubmt.TranslateFunc {
	return c.Translate
}

// CompleteNameJSON asks for the standard English transliteration of a
// source-language personal name as a schema-constrained JSON object,
// rather than free text, so the caller never has to guess at stripping
// quotes or trailing punctuation off a chat response.
func (c *OpenAIClient) CompleteNameJSON(ctx context.Context, sourceName string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(
				"Give the standard English transliteration of the personal name %q.", sourceName)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "name_completion",
					Schema: nameCompletionSchema,
					Strict: param.NewOpt(true),
				},
			},
		},
	}

	resp, err := c.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isModelNotFound(err) {
			return "", &NotSupportedError{Model: c.Model, Cause: err}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	var result nameCompletionResult
	if err := unmarshalLenientJSON([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return "", fmt.Errorf("mt: parsing name completion response: %w", err)
	}
	return strings.TrimSpace(result.EnglishName), nil
}

// unmarshalLenientJSON unmarshals data into v, repairing malformed JSON
// (unterminated strings, trailing commas, stray text around the object)
// before retrying once if the first attempt fails on a syntax error.
func unmarshalLenientJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); !ok {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

// isModelNotFound reports whether err is the provider's "model not found /
// not supported" class of error, which must short-circuit retries.
func isModelNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model_not_found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "not supported")
}
