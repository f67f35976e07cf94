package models

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/pkg/llm"
)

// ChatModel drives an llm.Provider with a system message and window memory.
// Every built-in model is a ChatModel over a different provider.
type ChatModel struct {
	name     string
	system   string
	memory   *WindowMemory
	provider llm.Provider

	mu       sync.Mutex
	messages []schema.Message
}

// NewChatModel wraps provider. name only labels log lines.
func NewChatModel(name string, provider llm.Provider, opts Options, counter TokenCounter) *ChatModel {
	return &ChatModel{
		name:     name,
		system:   opts.SystemMessage,
		memory:   NewWindowMemory(opts.Memory, counter),
		provider: provider,
	}
}

func (m *ChatModel) Prompt(ctx context.Context, message string, h StreamHandler) (string, error) {
	sent := time.Now()

	m.mu.Lock()
	history := append([]schema.Message(nil), m.messages...)
	m.mu.Unlock()

	prompt := make([]llm.Message, 0, len(history)+2)
	if m.system != "" {
		prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: m.system})
	}
	prompt = append(prompt, m.memory.Window(history)...)
	prompt = append(prompt, llm.Message{Role: llm.RoleUser, Content: message})

	reply, err := m.call(ctx, prompt, h)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.messages = append(m.messages,
		schema.Message{Text: message, Type: schema.MessageUser, Timestamp: sent},
		schema.NewMessage(schema.MessageAI, reply),
	)
	m.mu.Unlock()
	return reply, nil
}

func (m *ChatModel) PromptWithoutMemory(ctx context.Context, message string, h StreamHandler) (string, error) {
	return m.call(ctx, []llm.Message{{Role: llm.RoleUser, Content: message}}, h)
}

func (m *ChatModel) Messages() []schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Message(nil), m.messages...)
}

func (m *ChatModel) call(ctx context.Context, prompt []llm.Message, h StreamHandler) (string, error) {
	start := time.Now()
	if h == nil {
		resp, err := m.provider.Complete(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("%s completion: %w", m.name, err)
		}
		slog.Debug("model replied", "model", m.name, "tokens", resp.Usage.TotalTokens, "elapsed", time.Since(start))
		return resp.Content, nil
	}

	stream, err := m.provider.Stream(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s stream: %w", m.name, err)
	}
	reply, err := llm.Collect(stream, h.OnToken)
	if err != nil {
		return "", fmt.Errorf("%s stream: %w", m.name, err)
	}
	h.OnEnd(reply)
	slog.Debug("model streamed", "model", m.name, "elapsed", time.Since(start))
	return reply, nil
}
