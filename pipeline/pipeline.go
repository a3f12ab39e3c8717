// Package pipeline wraps the remote transcription and reasoning
// services. Both are consumed as opaque request/response calls; the
// capture engine never depends on what runs behind them.
package pipeline

import (
	"context"
	"fmt"
)

type Transcription struct {
	Text string
}

type Response struct {
	Text string
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte, mime string) (Transcription, error)
}

type Reasoner interface {
	Reason(ctx context.Context, transcript, instruction string) (Response, error)
	// ReasonAudio sends raw audio straight to the reasoning model,
	// bypassing transcription ("direct" mode).
	ReasonAudio(ctx context.Context, audioData []byte, mime, instruction string) (Response, error)
}

// APIError carries the diagnostic payload of a failed service call so
// the caller can surface status code and response body.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.StatusCode, e.Body)
}

func extFromMIME(mime string) string {
	switch mime {
	case "audio/flac":
		return "flac"
	default:
		return "wav"
	}
}
