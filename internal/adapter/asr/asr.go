// Package asr implements the submit/poll contract the transcription phase
// uses against a cloud speech-recognition provider: submit a file for
// recognition, then poll at a fixed interval until utterances appear or an
// error state is reached.
package asr

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval and DefaultMaxWait match the provider's documented
// async-file-recognition turnaround for a single episode.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 3600 * time.Second
)

// errorStates are the nested status values that end a poll loop with
// failure, wherever in the response they appear.
var errorStates = map[string]bool{
	"failed":    true,
	"error":     true,
	"timeout":   true,
	"cancelled": true,
	"rejected":  true,
}

// Request describes one file to submit for recognition.
type Request struct {
	AudioURL   string
	Format     string
	SampleRate int
	Language   string
	EnableITN  bool
	EnablePunc bool
}

// Word is a single recognized token with its timing.
type Word struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Utterance is one recognized speech segment.
type Utterance struct {
	Text      string
	StartMs   int64
	EndMs     int64
	SpeakerID string
	Words     []Word
}

// Response is the provider's current view of a submitted request. Status
// carries every nested status string the provider returned (task status,
// any sub-resource status), so SubmitAndPoll can recognize an error state
// regardless of which field it surfaced in.
type Response struct {
	RequestID      string
	HTTPStatus     int
	StatusPresent  bool
	Utterances     []Utterance
	NestedStatuses []string
	ErrorMessage   string
}

// hasErrorState reports whether any of r's nested statuses is an error
// state.
func (r Response) hasErrorState() (string, bool) {
	for _, s := range r.NestedStatuses {
		if errorStates[s] {
			return s, true
		}
	}
	return "", false
}

// Client submits recognition requests and polls for their status. A
// provider-specific implementation (doubaospeech, or any other ASR vendor)
// satisfies this.
type Client interface {
	Submit(ctx context.Context, req Request, resourceID string) (requestID string, err error)
	Query(ctx context.Context, requestID string) (Response, error)
}

// SubmitAndPoll submits req and polls at pollInterval until the response
// carries utterances (success) or an error state appears in any nested
// status (failure), or maxWait elapses. An HTTP status >= 400 or a
// response missing the provider's status field entirely is a hard error,
// since it means the adapter cannot tell success from failure.
func SubmitAndPoll(ctx context.Context, c Client, req Request, resourceID string, pollInterval, maxWait time.Duration) ([]Utterance, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	requestID, err := c.Submit(ctx, req, resourceID)
	if err != nil {
		return nil, fmt.Errorf("asr: submit: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("asr: poll %s: %w", requestID, ctx.Err())
		case <-ticker.C:
			resp, err := c.Query(ctx, requestID)
			if err != nil {
				return nil, fmt.Errorf("asr: query %s: %w", requestID, err)
			}
			if resp.HTTPStatus >= 400 {
				return nil, fmt.Errorf("asr: query %s: http status %d: %s", requestID, resp.HTTPStatus, resp.ErrorMessage)
			}
			if !resp.StatusPresent {
				return nil, fmt.Errorf("asr: query %s: response missing provider status field", requestID)
			}
			if state, failed := resp.hasErrorState(); failed {
				return nil, fmt.Errorf("asr: request %s reached error state %q: %s", requestID, state, resp.ErrorMessage)
			}
			if len(resp.Utterances) > 0 {
				return resp.Utterances, nil
			}
		}
	}
}
