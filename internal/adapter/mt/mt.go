// Package mt supplies the translate_fn engines internal/mt consumes: thin
// single-shot chat-completion clients over OpenAI and Gemini, wrapped with
// the transient-failure retry/backoff and not-found short-circuit the
// contract calls for, plus an optional fallback engine.
package mt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	dubmt "github.com/reelsub/dubpipe/internal/mt"
)

// DefaultMaxRetries and DefaultBackoff match the contract's "3 retries and
// exponential backoff" language: 3 retries after the first attempt, doubling
// from DefaultBackoff each time.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 500 * time.Millisecond
)

// NotSupportedError marks a model error that must not be retried: the
// requested model does not exist or is not available to this account.
type NotSupportedError struct {
	Model string
	Cause error
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("mt: model %q not found or not supported: %v", e.Model, e.Cause)
}

func (e *NotSupportedError) Unwrap() error { return e.Cause }

// WithRetry wraps translate with up to maxRetries retries (DefaultMaxRetries
// when maxRetries <= 0) and exponential backoff on any error except
// [NotSupportedError], which short-circuits immediately.
func WithRetry(translate dubmt.TranslateFunc, maxRetries int, backoff time.Duration) dubmt.TranslateFunc {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return func(ctx context.Context, prompt string) (string, error) {
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			text, err := translate(ctx, prompt)
			if err == nil {
				return text, nil
			}

			var notSupported *NotSupportedError
			if errors.As(err, &notSupported) {
				return "", err
			}
			lastErr = err

			if attempt < maxRetries {
				wait := time.Duration(float64(backoff) * math.Pow(2, float64(attempt)))
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		return "", fmt.Errorf("mt: exhausted %d retries: %w", maxRetries, lastErr)
	}
}

// WithFallback tries primary, falling back to secondary on any error
// (including a NotSupportedError from primary — the fallback engine may
// support a different model set entirely).
func WithFallback(primary, secondary dubmt.TranslateFunc) dubmt.TranslateFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		text, err := primary(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if secondary == nil {
			return "", err
		}
		return secondary(ctx, prompt)
	}
}
