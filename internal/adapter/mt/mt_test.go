package mt

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("rate limited")

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	translate := func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "translated", nil
	}

	wrapped := WithRetry(translate, 3, time.Millisecond)
	text, err := wrapped(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if text != "translated" {
		t.Fatalf("got %q", text)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryShortCircuitsOnNotSupported(t *testing.T) {
	calls := 0
	translate := func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", &NotSupportedError{Model: "gpt-nonexistent", Cause: errTransient}
	}

	wrapped := WithRetry(translate, 3, time.Millisecond)
	_, err := wrapped(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call for a not-supported error, got %d", calls)
	}
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	translate := func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errTransient
	}

	wrapped := WithRetry(translate, 2, time.Millisecond)
	_, err := wrapped(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithFallbackUsesSecondaryOnPrimaryError(t *testing.T) {
	primary := func(ctx context.Context, prompt string) (string, error) {
		return "", &NotSupportedError{Model: "gpt-x"}
	}
	secondary := func(ctx context.Context, prompt string) (string, error) {
		return "fallback result", nil
	}

	wrapped := WithFallback(primary, secondary)
	text, err := wrapped(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if text != "fallback result" {
		t.Fatalf("got %q", text)
	}
}

func TestWithFallbackReturnsPrimaryErrorWithoutSecondary(t *testing.T) {
	primary := func(ctx context.Context, prompt string) (string, error) {
		return "", errTransient
	}

	wrapped := WithFallback(primary, nil)
	_, err := wrapped(context.Background(), "prompt")
	if !errors.Is(err, errTransient) {
		t.Fatalf("got %v", err)
	}
}
