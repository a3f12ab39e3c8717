package pipeline

import (
	"context"
	"sync"
	"time"
)

// FakeTranscriber returns scripted results and records every call, for
// controller tests.
type FakeTranscriber struct {
	Text  string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, _ []byte, _ string) (Transcription, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Transcription{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return Transcription{}, f.Err
	}
	return Transcription{Text: f.Text}, nil
}

func (f *FakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type FakeReasoner struct {
	Text  string
	Err   error
	Delay time.Duration

	mu         sync.Mutex
	calls      int
	audioCalls int
	lastInput  string
}

func (f *FakeReasoner) Reason(ctx context.Context, transcript, _ string) (Response, error) {
	f.mu.Lock()
	f.calls++
	f.lastInput = transcript
	f.mu.Unlock()
	return f.respond(ctx)
}

func (f *FakeReasoner) ReasonAudio(ctx context.Context, _ []byte, _, _ string) (Response, error) {
	f.mu.Lock()
	f.calls++
	f.audioCalls++
	f.mu.Unlock()
	return f.respond(ctx)
}

func (f *FakeReasoner) respond(ctx context.Context) (Response, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if f.Err != nil {
		return Response{}, f.Err
	}
	return Response{Text: f.Text}, nil
}

func (f *FakeReasoner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeReasoner) AudioCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioCalls
}

func (f *FakeReasoner) LastInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInput
}
