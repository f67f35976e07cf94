package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/chatverse/internal/models"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

// Conversation is one chat with one model instance.
type Conversation struct {
	ID         types.ConversationID
	Topic      string
	ModelKey   string
	Model      models.Model
	Summarized bool
	CreatedAt  time.Time
}

// Messages returns the exchanges recorded so far.
func (c *Conversation) Messages() []schema.Message {
	return c.Model.Messages()
}

// StartConversation builds a fresh model instance for meta. args are laid
// over the model's llm_arguments.
func (b *Backend) StartConversation(topic string, meta *schema.ModelMetaInfo, args map[string]any) (*Conversation, error) {
	llmArgs := schema.CloneMap(meta.LLMArguments)
	if llmArgs == nil {
		llmArgs = map[string]any{}
	}
	for k, v := range args {
		llmArgs[k] = v
	}

	m, err := b.registry.New(meta.LLMModelFile, meta.LLMModelClass, models.Options{
		SystemMessage: meta.SystemMessage,
		Memory:        schema.CloneMap(meta.MemoryArguments),
		Args:          llmArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("start conversation with %s: %w", meta.Name, err)
	}

	slog.Debug("conversation started", "model", meta.Key, "class", meta.LLMModelClass)
	return &Conversation{
		ID:        types.NewConversationID(),
		Topic:     topic,
		ModelKey:  meta.Key,
		Model:     m,
		CreatedAt: time.Now(),
	}, nil
}

// Prompt sends message through the conversation's memory.
func (b *Backend) Prompt(ctx context.Context, conv *Conversation, message string, h models.StreamHandler) (string, error) {
	start := time.Now()
	reply, err := conv.Model.Prompt(ctx, message, h)
	b.metrics.RecordPrompt(conv.ModelKey, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", conv.ModelKey, err)
	}
	return reply, nil
}

const summaryPrompt = `Human: Summarize """Hello world""" to less than 5 words
AI: Hello World
Summarize: """%s""" to less than 5 words
AI:`

// SummaryPrompt is the few-shot prompt that asks a model for a topic.
func SummaryPrompt(content string) string {
	return fmt.Sprintf(summaryPrompt, content)
}

// SummarizeConversation asks the conversation's model, without memory, for
// a short topic describing text and stores it on conv.
func (b *Backend) SummarizeConversation(ctx context.Context, conv *Conversation, text string, h models.StreamHandler) (string, error) {
	start := time.Now()
	summary, err := conv.Model.PromptWithoutMemory(ctx, SummaryPrompt(text), h)
	b.metrics.RecordPrompt(conv.ModelKey, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary != "" {
		conv.Topic = summary
	}
	conv.Summarized = true
	return summary, nil
}
