package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nag/internal/config"
)

func TestOpenAICompleteExtractsText(t *testing.T) {
	var gotAuth string
	var gotReq openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL, 5*time.Second)
	out, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hi", Temperature: 0.8, MaxTokens: 100})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("got %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
	if gotReq.Model != "gpt-4o-mini" || gotReq.MaxTokens != 100 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestOpenAINonSuccessStatusIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL, 5*time.Second)
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ProviderError, got %T: %v", err, err)
	}
	if pe.Status != http.StatusTooManyRequests {
		t.Fatalf("status = %d", pe.Status)
	}
	if !strings.Contains(pe.Error(), "429") {
		t.Fatalf("error should carry status: %v", pe)
	}
}

func TestOpenAIMissingContentIsShapeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL, 5*time.Second)
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("want *ShapeError, got %T: %v", err, err)
	}
	if se.Provider != "openai" {
		t.Fatalf("provider = %q", se.Provider)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL, time.Second)
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("want *NetworkError, got %T: %v", err, err)
	}
	if ne.Unwrap() == nil {
		t.Fatal("NetworkError should wrap the transport error")
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Complete(ctx, Request{Prompt: "hi"})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("want *NetworkError, got %T: %v", err, err)
	}
}

func TestGeminiCompleteExtractsText(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "sys" {
			t.Fatalf("system instruction not sent: %+v", req.SystemInstruction)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"from gemini"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGemini("g-key", "gemini-1.5-flash", srv.URL, 5*time.Second)
	out, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "from gemini" {
		t.Fatalf("got %q", out)
	}
	if gotKey != "g-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestGeminiEmptyCandidatesIsShapeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := NewGemini("g-key", "gemini-1.5-flash", srv.URL, 5*time.Second)
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	var se *ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("want *ShapeError, got %T: %v", err, err)
	}
	if se.Provider != "gemini" {
		t.Fatalf("provider = %q", se.Provider)
	}
}

func TestAnthropicCompleteExtractsText(t *testing.T) {
	var gotKey, gotVersion string
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"from anthropic"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropic("a-key", "claude-3-5-haiku", srv.URL, 5*time.Second)
	out, err := p.Complete(context.Background(), Request{System: "sys", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "from anthropic" {
		t.Fatalf("got %q", out)
	}
	if gotKey != "a-key" || gotVersion != anthropicVersion {
		t.Fatalf("headers: key=%q version=%q", gotKey, gotVersion)
	}
	// max_tokens is mandatory on this wire format and must default when unset
	if v, ok := gotReq["max_tokens"].(float64); !ok || v != 1024 {
		t.Fatalf("max_tokens = %v", gotReq["max_tokens"])
	}
}

func TestFactorySelectsProvider(t *testing.T) {
	base := config.AIConfig{APIKey: "k", Model: "m"}
	for _, id := range []string{"openai", "gemini", "anthropic", "OpenAI"} {
		cfg := base
		cfg.Provider = id
		c, err := New(cfg, time.Second)
		if err != nil {
			t.Fatalf("New(%q): %v", id, err)
		}
		if c == nil {
			t.Fatalf("New(%q) returned nil Completer", id)
		}
	}
}

func TestFactoryRejectsBadConfig(t *testing.T) {
	cases := []config.AIConfig{
		{Provider: "openai", Model: "m"},             // missing key
		{Provider: "openai", APIKey: "k"},            // missing model
		{Provider: "mystery", APIKey: "k", Model: "m"}, // unknown id
		{APIKey: "k", Model: "m"},                    // empty id
	}
	for _, cfg := range cases {
		if _, err := New(cfg, time.Second); err == nil {
			t.Fatalf("New(%+v) should fail", cfg)
		}
	}
}
