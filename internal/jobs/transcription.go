package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// TranscriptionRequest is the body POSTed to the transcription service.
type TranscriptionRequest struct {
	CallSid        string `json:"call_sid"`
	RecordingSid   string `json:"recording_sid"`
	RecordingURL   string `json:"recording_url"`
	IdempotencyKey string `json:"idempotency_key"`
	Attempt        int    `json:"attempt"`
}

// TranscriptionDispatcher hands transcribe_recording jobs to an external
// service. The service is expected to dedupe on the Idempotency-Key header.
type TranscriptionDispatcher struct {
	client   *resty.Client
	endpoint string
}

var ErrNoEndpoint = errors.New("jobs: transcription endpoint not configured")

func NewTranscriptionDispatcher(endpoint string, timeout time.Duration) (*TranscriptionDispatcher, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "tradeline-worker")
	return &TranscriptionDispatcher{client: client, endpoint: endpoint}, nil
}

func (d *TranscriptionDispatcher) Handle(ctx context.Context, j Job) error {
	url := j.Metadata["RecordingUrl"]
	if url == "" {
		return fmt.Errorf("%w: job %s has no RecordingUrl", ErrPermanent, j.ID)
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", j.IdempotencyKey).
		SetBody(TranscriptionRequest{
			CallSid:        j.CallSid,
			RecordingSid:   j.Metadata["RecordingSid"],
			RecordingURL:   url,
			IdempotencyKey: j.IdempotencyKey,
			Attempt:        j.Attempts,
		}).
		Post(d.endpoint)
	if err != nil {
		return fmt.Errorf("transcription dispatch: %w", err)
	}
	if resp.IsError() {
		err := fmt.Errorf("transcription dispatch: status %d", resp.StatusCode())
		if retryableStatus(resp.StatusCode()) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
