package llm

import "context"

// Provider defines the interface for interacting with LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Complete sends a chat completion request and returns the full response.
	Complete(ctx context.Context, messages []Message) (*Response, error)

	// Stream sends a chat completion request and returns a channel of
	// incremental deltas. The channel is closed when the response ends.
	Stream(ctx context.Context, messages []Message) (<-chan Delta, error)
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Collect drains a delta stream into one string, stopping at the first error.
func Collect(stream <-chan Delta, onToken func(string)) (string, error) {
	var out []byte
	for d := range stream {
		if d.Err != nil {
			return string(out), d.Err
		}
		out = append(out, d.Content...)
		if onToken != nil && d.Content != "" {
			onToken(d.Content)
		}
	}
	return string(out), nil
}
