package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

const DefaultReasonURL = "https://api.openai.com/v1/chat/completions"

// Chat talks to an OpenAI-compatible chat-completions endpoint for the
// reasoning step. Text goes as a plain user message; direct mode sends
// the audio itself as an input_audio content part.
type Chat struct {
	client     *TracedClient
	apiURL     string
	apiKey     string
	model      string
	audioModel string

	OnMetrics func(*NetworkMetrics)
}

func NewChat(apiURL, apiKey, model string) *Chat {
	if apiURL == "" {
		apiURL = DefaultReasonURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Chat{
		client:     NewTracedClient(),
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		audioModel: "gpt-4o-audio-preview",
	}
}

func (c *Chat) Warm() { go c.client.Warm(c.apiURL) }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Chat) Reason(ctx context.Context, transcript, instruction string) (Response, error) {
	var messages []chatMessage
	if instruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: instruction})
	}
	messages = append(messages, chatMessage{Role: "user", Content: transcript})

	return c.complete(ctx, chatRequest{Model: c.model, Messages: messages})
}

func (c *Chat) ReasonAudio(ctx context.Context, audioData []byte, mime, instruction string) (Response, error) {
	var messages []chatMessage
	if instruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: instruction})
	}
	messages = append(messages, chatMessage{
		Role: "user",
		Content: []map[string]any{
			{
				"type": "input_audio",
				"input_audio": map[string]string{
					"data":   base64.StdEncoding.EncodeToString(audioData),
					"format": extFromMIME(mime),
				},
			},
		},
	})

	return c.complete(ctx, chatRequest{Model: c.audioModel, Messages: messages})
}

func (c *Chat) complete(ctx context.Context, reqBody chatRequest) (Response, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	if c.OnMetrics != nil {
		c.OnMetrics(resp.Metrics)
	}

	if resp.StatusCode != 200 {
		return Response{}, &APIError{
			Service:    "reasoning",
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		}
	}

	var cResp chatResponse
	if err := json.Unmarshal(resp.Body, &cResp); err != nil {
		return Response{}, fmt.Errorf("reasoning response parse error: %w", err)
	}
	if len(cResp.Choices) == 0 {
		return Response{}, fmt.Errorf("reasoning response has no choices")
	}

	return Response{Text: cResp.Choices[0].Message.Content}, nil
}
