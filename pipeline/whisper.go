package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

const DefaultTranscribeURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// Whisper talks to an OpenAI-compatible batch transcription endpoint.
type Whisper struct {
	client   *TracedClient
	apiURL   string
	apiKey   string
	model    string
	language string

	// OnMetrics, when set, receives network timings after each call.
	OnMetrics func(*NetworkMetrics)
}

func NewWhisper(apiURL, apiKey, model string) *Whisper {
	if apiURL == "" {
		apiURL = DefaultTranscribeURL
	}
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &Whisper{
		client: NewTracedClient(),
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
	}
}

func (w *Whisper) SetLanguage(lang string) { w.language = lang }

// Warm opens the TLS connection early so the first extraction does not
// pay the handshake.
func (w *Whisper) Warm() { go w.client.Warm(w.apiURL) }

func (w *Whisper) Transcribe(ctx context.Context, audioData []byte, mime string) (Transcription, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+extFromMIME(mime))
	if err != nil {
		return Transcription{}, err
	}
	if _, err := part.Write(audioData); err != nil {
		return Transcription{}, err
	}

	writer.WriteField("model", w.model)
	writer.WriteField("response_format", "json")
	if w.language != "" {
		writer.WriteField("language", w.language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", w.apiURL, &body)
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return Transcription{}, err
	}
	if w.OnMetrics != nil {
		w.OnMetrics(resp.Metrics)
	}

	if resp.StatusCode != 200 {
		return Transcription{}, &APIError{
			Service:    "transcription",
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}

	var wResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &wResp); err != nil {
		return Transcription{}, fmt.Errorf("transcription response parse error: %w", err)
	}

	return Transcription{Text: wResp.Text}, nil
}
