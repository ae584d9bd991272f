package asr

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelsub/dubpipe/pkg/doubaospeech"
)

// DoubaoClient adapts doubaospeech's async big-model file ASR (V2/V3,
// /api/v3/sauc/bigmodel_async) to the Client contract.
type DoubaoClient struct {
	client *doubaospeech.Client
}

// NewDoubaoClient wraps an already-configured doubaospeech client.
func NewDoubaoClient(client *doubaospeech.Client) *DoubaoClient {
	return &DoubaoClient{client: client}
}

// Submit starts an async file recognition task and returns its task ID.
func (d *DoubaoClient) Submit(ctx context.Context, req Request, resourceID string) (string, error) {
	result, err := d.client.ASRV2.SubmitAsync(ctx, &doubaospeech.ASRV2AsyncRequest{
		AudioURL:   req.AudioURL,
		Format:     req.Format,
		Language:   req.Language,
		EnableITN:  req.EnableITN,
		EnablePunc: req.EnablePunc,
		ResourceID: resourceID,
	})
	if err != nil {
		var apiErr *doubaospeech.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("submit: %s (code=%d)", apiErr.Message, apiErr.Code)
		}
		return "", err
	}
	if result.TaskID == "" {
		return "", fmt.Errorf("submit: provider returned no task id")
	}
	return result.TaskID, nil
}

// Query reports the current status of a submitted task, translating the
// provider's single status string into the generic nested-status slice
// SubmitAndPoll checks against.
func (d *DoubaoClient) Query(ctx context.Context, requestID string) (Response, error) {
	result, err := d.client.ASRV2.QueryAsync(ctx, requestID)
	if err != nil {
		var apiErr *doubaospeech.Error
		if errors.As(err, &apiErr) {
			return Response{RequestID: requestID, HTTPStatus: apiErr.HTTPStatus, ErrorMessage: apiErr.Message}, nil
		}
		return Response{}, err
	}

	resp := Response{
		RequestID:     requestID,
		HTTPStatus:    200,
		StatusPresent: result.Status != "",
		ErrorMessage:  result.Error,
	}
	if result.Status != "" {
		resp.NestedStatuses = append(resp.NestedStatuses, result.Status)
	}
	for _, u := range result.Utterances {
		utt := Utterance{
			Text:      u.Text,
			StartMs:   int64(u.StartTime),
			EndMs:     int64(u.EndTime),
			SpeakerID: u.SpeakerID,
		}
		for _, w := range u.Words {
			utt.Words = append(utt.Words, Word{Text: w.Text, StartMs: int64(w.StartTime), EndMs: int64(w.EndTime)})
		}
		resp.Utterances = append(resp.Utterances, utt)
	}
	return resp, nil
}
