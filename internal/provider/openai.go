package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const openAIDefaultURL = "https://api.openai.com/v1/chat/completions"

// OpenAI speaks the chat completions wire format: bearer auth, a messages
// array with explicit roles, and the generated text under
// choices[0].message.content.
type OpenAI struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewOpenAI(apiKey, model, endpoint string, timeout time.Duration) *OpenAI {
	if endpoint == "" {
		endpoint = openAIDefaultURL
	}
	return &OpenAI{apiKey: apiKey, model: model, endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	payload := openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	raw, err := postJSON(ctx, p.client, p.endpoint, headers, payload)
	if err != nil {
		return "", err
	}
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &ShapeError{Provider: "openai", Field: "choices[0].message.content"}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ShapeError{Provider: "openai", Field: "choices[0].message.content"}
	}
	return resp.Choices[0].Message.Content, nil
}
