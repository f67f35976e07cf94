package models

import (
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/pkg/llm"
)

const defaultWindow = 5

// WindowMemory keeps the last K exchanges of a conversation, trimmed further
// to MaxTokens when that is positive.
type WindowMemory struct {
	K         int
	MaxTokens int
	Counter   TokenCounter
}

// NewWindowMemory reads "k" and "max_token_limit" from memory arguments.
func NewWindowMemory(args map[string]any, counter TokenCounter) *WindowMemory {
	m := &WindowMemory{K: defaultWindow, Counter: counter}
	if k, ok := intArg(args, "k"); ok && k >= 0 {
		m.K = k
	}
	if n, ok := intArg(args, "max_token_limit"); ok && n > 0 {
		m.MaxTokens = n
	}
	return m
}

// Window converts the tail of history into provider messages.
func (m *WindowMemory) Window(history []schema.Message) []llm.Message {
	start := len(history) - 2*m.K
	if start < 0 {
		start = 0
	}
	tail := history[start:]

	if m.MaxTokens > 0 && m.Counter != nil {
		total := 0
		for _, msg := range tail {
			total += m.Counter.Count(msg.Text)
		}
		for len(tail) > 0 && total > m.MaxTokens {
			total -= m.Counter.Count(tail[0].Text)
			tail = tail[1:]
		}
	}

	out := make([]llm.Message, 0, len(tail))
	for _, msg := range tail {
		out = append(out, llm.Message{Role: role(msg.Type), Content: msg.Text})
	}
	return out
}

func role(t schema.MessageType) string {
	switch t {
	case schema.MessageAI:
		return llm.RoleAssistant
	case schema.MessageSystem:
		return llm.RoleSystem
	}
	return llm.RoleUser
}
