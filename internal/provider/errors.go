package provider

import (
	"fmt"
	"strings"
)

// NetworkError wraps transport failures, including timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("provider network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError reports a non-success HTTP status from a provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, body)
}

// ShapeError reports a success envelope that lacks the expected text field.
type ShapeError struct {
	Provider string
	Field    string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s response missing %s", e.Provider, e.Field)
}
