package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"

// Gemini speaks the generateContent wire format: api key header, a contents
// array of parts, generationConfig for sampling, and the generated text under
// candidates[0].content.parts[0].text.
type Gemini struct {
	apiKey string
	model  string
	base   string
	client *http.Client
}

func NewGemini(apiKey, model, endpoint string, timeout time.Duration) *Gemini {
	if endpoint == "" {
		endpoint = geminiDefaultBase
	}
	return &Gemini{apiKey: apiKey, model: model, base: strings.TrimRight(endpoint, "/"), client: &http.Client{Timeout: timeout}}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	payload.GenerationConfig.Temperature = req.Temperature
	payload.GenerationConfig.MaxOutputTokens = req.MaxTokens

	url := fmt.Sprintf("%s/models/%s:generateContent", p.base, p.model)
	headers := map[string]string{"x-goog-api-key": p.apiKey}
	raw, err := postJSON(ctx, p.client, url, headers, payload)
	if err != nil {
		return "", err
	}
	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &ShapeError{Provider: "gemini", Field: "candidates[0].content.parts[0].text"}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 ||
		strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text) == "" {
		return "", &ShapeError{Provider: "gemini", Field: "candidates[0].content.parts[0].text"}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
