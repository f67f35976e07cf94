// Package models defines the contract chat models implement and the
// registry that maps configured model files and classes to constructors.
package models

import (
	"context"

	"github.com/user/chatverse/internal/schema"
)

// StreamHandler receives a response while it is generated.
type StreamHandler interface {
	OnToken(token string)
	OnEnd(response string)
}

// HandlerFuncs adapts plain functions to a StreamHandler. Nil fields are
// skipped.
type HandlerFuncs struct {
	Token func(string)
	End   func(string)
}

func (h HandlerFuncs) OnToken(token string) {
	if h.Token != nil {
		h.Token(token)
	}
}

func (h HandlerFuncs) OnEnd(response string) {
	if h.End != nil {
		h.End(response)
	}
}

// Model is a chat model with its own conversation memory.
type Model interface {
	// Prompt answers message in the context of earlier exchanges and records
	// both sides on success. A nil handler disables streaming.
	Prompt(ctx context.Context, message string, h StreamHandler) (string, error)
	// PromptWithoutMemory answers message on its own and records nothing.
	PromptWithoutMemory(ctx context.Context, message string, h StreamHandler) (string, error)
	// Messages returns the recorded exchanges in order.
	Messages() []schema.Message
}

// Options carries what a configured model passes to its constructor.
type Options struct {
	SystemMessage string
	Memory        map[string]any
	Args          map[string]any
}

// Constructor builds a model from options.
type Constructor func(opts Options) (Model, error)
