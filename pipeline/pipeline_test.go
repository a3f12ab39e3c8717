package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhisperTranscribe(t *testing.T) {
	var gotModel, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		if f, hdr, err := r.FormFile("file"); err == nil {
			gotFilename = hdr.Filename
			f.Close()
		}
		w.Write([]byte(`{"text": "hello there"}`))
	}))
	defer srv.Close()

	w := NewWhisper(srv.URL, "key", "")
	got, err := w.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello there" {
		t.Errorf("Text = %q, want %q", got.Text, "hello there")
	}
	if gotModel != "whisper-large-v3-turbo" {
		t.Errorf("model = %q", gotModel)
	}
	if gotFilename != "audio.wav" {
		t.Errorf("filename = %q, want audio.wav", gotFilename)
	}
}

func TestWhisperAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	w := NewWhisper(srv.URL, "key", "")
	_, err := w.Transcribe(context.Background(), []byte("x"), "audio/wav")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if apiErr.Body == "" {
		t.Error("expected response body in error payload")
	}
}

func TestChatReason(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write([]byte(`{"choices": [{"message": {"content": "the answer"}}]}`))
	}))
	defer srv.Close()

	c := NewChat(srv.URL, "key", "test-model")
	got, err := c.Reason(context.Background(), "what was said", "answer briefly")
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if got.Text != "the answer" {
		t.Errorf("Text = %q", got.Text)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("first role = %q, want system", gotReq.Messages[0].Role)
	}
}

func TestChatReasonAudioSendsInputAudio(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &raw)
		w.Write([]byte(`{"choices": [{"message": {"content": "heard it"}}]}`))
	}))
	defer srv.Close()

	c := NewChat(srv.URL, "key", "")
	got, err := c.ReasonAudio(context.Background(), []byte{1, 2, 3}, "audio/wav", "")
	if err != nil {
		t.Fatalf("ReasonAudio: %v", err)
	}
	if got.Text != "heard it" {
		t.Errorf("Text = %q", got.Text)
	}

	messages := raw["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	part := content[0].(map[string]any)
	if part["type"] != "input_audio" {
		t.Errorf("content part type = %v, want input_audio", part["type"])
	}
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewChat(srv.URL, "key", "")
	if _, err := c.Reason(context.Background(), "x", ""); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestExtFromMIME(t *testing.T) {
	for _, tt := range []struct{ mime, want string }{
		{"audio/wav", "wav"},
		{"audio/flac", "flac"},
		{"", "wav"},
	} {
		if got := extFromMIME(tt.mime); got != tt.want {
			t.Errorf("extFromMIME(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
