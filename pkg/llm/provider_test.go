package llm

import (
	"context"
	"errors"
	"testing"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []Message) (*Response, error)
	StreamFunc   func(ctx context.Context, messages []Message) (<-chan Delta, error)
}

func (m *MockProvider) Complete(ctx context.Context, messages []Message) (*Response, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	return &Response{Content: "mock response"}, nil
}

func (m *MockProvider) Stream(ctx context.Context, messages []Message) (<-chan Delta, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages)
	}
	ch := make(chan Delta, 1)
	ch <- Delta{Content: "mock stream"}
	close(ch)
	return ch, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{}
	ctx := context.Background()
	messages := []Message{{Role: RoleUser, Content: "test"}}

	resp, err := provider.Complete(ctx, messages)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty response")
	}

	stream, err := provider.Stream(ctx, messages)
	if err != nil {
		t.Fatal(err)
	}
	delta := <-stream
	if delta.Content == "" {
		t.Error("expected non-empty delta")
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan Delta, 3)
	ch <- Delta{Content: "hello "}
	ch <- Delta{Content: "world"}
	ch <- Delta{Content: "!"}
	close(ch)

	var tokens []string
	got, err := Collect(ch, func(s string) { tokens = append(tokens, s) })
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello world!" {
		t.Errorf("expected 'hello world!', got %q", got)
	}
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d", len(tokens))
	}
}

func TestCollectStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ch := make(chan Delta, 3)
	ch <- Delta{Content: "partial"}
	ch <- Delta{Err: boom}
	close(ch)

	got, err := Collect(ch, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got != "partial" {
		t.Errorf("expected 'partial', got %q", got)
	}
}
