package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicDefaultURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
)

// Anthropic speaks the messages wire format: x-api-key header, a top-level
// system field, and the generated text under content[0].text.
type Anthropic struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewAnthropic(apiKey, model, endpoint string, timeout time.Duration) *Anthropic {
	if endpoint == "" {
		endpoint = anthropicDefaultURL
	}
	return &Anthropic{apiKey: apiKey, model: model, endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type anthropicRequest struct {
	Model       string `json:"model"`
	System      string `json:"system,omitempty"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		// max_tokens is mandatory on this wire format.
		maxTokens = 1024
	}
	payload := anthropicRequest{
		Model:       p.model,
		System:      req.System,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
	payload.Messages = append(payload.Messages, struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: "user", Content: req.Prompt})

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	raw, err := postJSON(ctx, p.client, p.endpoint, headers, payload)
	if err != nil {
		return "", err
	}
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &ShapeError{Provider: "anthropic", Field: "content[0].text"}
	}
	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", &ShapeError{Provider: "anthropic", Field: "content[0].text"}
	}
	return resp.Content[0].Text, nil
}
