// Package provider maps abstract completion requests onto the wire formats
// of a closed set of text-completion services and extracts the raw completion
// text from each service's response envelope. Callers only ever see raw text
// or one of the typed errors in errors.go.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Timeouts per pipeline. A timed-out call is indistinguishable from a
// transport failure for callers.
const (
	ReminderTimeout  = 20 * time.Second
	DetectionTimeout = 15 * time.Second
)

// Request is a provider-agnostic completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer is the shared capability all provider variants implement.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// postJSON issues the provider call and applies the shared error taxonomy:
// transport failures and timeouts become *NetworkError, non-2xx statuses
// become *ProviderError. Envelope interpretation is left to the caller.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
