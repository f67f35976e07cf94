package models

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/pkg/llm"
)

type recordingProvider struct {
	reply   string
	err     error
	prompts [][]llm.Message
	configs []*llm.Config
}

func (p *recordingProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	p.prompts = append(p.prompts, messages)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: p.reply}, nil
}

func (p *recordingProvider) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	p.prompts = append(p.prompts, messages)
	ch := make(chan llm.Delta, 2)
	ch <- llm.Delta{Content: p.reply}
	if p.err != nil {
		ch <- llm.Delta{Err: p.err}
	}
	close(ch)
	return ch, nil
}

func (p *recordingProvider) factory(cfg *llm.Config) llm.Provider {
	p.configs = append(p.configs, cfg)
	return p
}

type wordCounter struct{}

func (wordCounter) Count(s string) int { return len(strings.Fields(s)) }

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry(nil, wordCounter{})

	for _, ref := range []struct{ file, class string }{
		{"base_model.py", "BaseLLMModel"},
		{"models/base_langchain_model.py", "BaseLangChainModel"},
		{"chat_gpt", "ChatGPT"},
		{"/app/models/llama2.py", "LLAMA2"},
	} {
		if err := r.Resolve(ref.file, ref.class); err != nil {
			t.Errorf("Resolve(%s, %s): %v", ref.file, ref.class, err)
		}
	}

	err := r.Resolve("chat_gpt.py", "Missing")
	if err == nil || err.Error() != "class Missing not found in model file chat_gpt.py or is not a registered model" {
		t.Errorf("unexpected error: %v", err)
	}
	if len(r.All()) != 4 {
		t.Errorf("expected 4 registered models, got %d", len(r.All()))
	}
}

func TestFakeModel(t *testing.T) {
	r := NewDefaultRegistry(nil, wordCounter{})
	m, err := r.New("base_model.py", "BaseLLMModel", Options{})
	if err != nil {
		t.Fatal(err)
	}

	before := time.Now()
	got, err := m.Prompt(context.Background(), "hi", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != FakeResponse {
		t.Errorf("expected %q, got %q", FakeResponse, got)
	}

	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Type != schema.MessageUser || msgs[0].Text != "hi" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[0].Timestamp.Before(before) || msgs[1].Timestamp.Before(msgs[0].Timestamp) {
		t.Error("timestamps out of order")
	}
	if msgs[1].Type != schema.MessageAI {
		t.Errorf("expected AI message, got %s", msgs[1].Type)
	}
}

func TestFakeListModelStreamsWords(t *testing.T) {
	r := NewDefaultRegistry(nil, wordCounter{})
	m, err := r.New("base_langchain_model.py", "BaseLangChainModel", Options{
		Args: map[string]any{"responses": []any{"one two three", "second"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var tokens []string
	var ended string
	h := HandlerFuncs{
		Token: func(s string) { tokens = append(tokens, s) },
		End:   func(s string) { ended = s },
	}
	got, err := m.Prompt(context.Background(), "q", h)
	if err != nil {
		t.Fatal(err)
	}
	if got != "one two three" || ended != got {
		t.Errorf("unexpected reply %q / %q", got, ended)
	}
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %v", tokens)
	}

	got, _ = m.Prompt(context.Background(), "q", nil)
	if got != "second" {
		t.Errorf("expected second response, got %q", got)
	}
	got, _ = m.PromptWithoutMemory(context.Background(), "q", nil)
	if got != "one two three" {
		t.Errorf("expected responses to cycle, got %q", got)
	}
	if len(m.Messages()) != 4 {
		t.Errorf("expected memoryless prompt not to be recorded, got %d messages", len(m.Messages()))
	}
}

func TestChatGPTArguments(t *testing.T) {
	p := &recordingProvider{reply: "ok"}
	r := NewDefaultRegistry(p.factory, wordCounter{})

	if _, err := r.New("chat_gpt.py", "ChatGPT", Options{}); err == nil {
		t.Fatal("expected missing key error")
	}

	_, err := r.New("chat_gpt.py", "ChatGPT", Options{Args: map[string]any{
		"openai_api_key":  "sk-test",
		"model_name":      "gpt-4",
		"temperature":     0.5,
		"max_tokens":      100,
		"openai_api_base": "http://proxy/v1",
	}})
	if err != nil {
		t.Fatal(err)
	}
	cfg := p.configs[0]
	if cfg.APIKey != "sk-test" || cfg.Model != "gpt-4" || cfg.Temperature != 0.5 || cfg.MaxTokens != 100 || cfg.BaseURL != "http://proxy/v1" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestEmptyArgumentsAreUnset(t *testing.T) {
	args := map[string]any{"s": "", "i": "", "f": "", "l": ""}
	if _, ok := stringArg(args, "s"); ok {
		t.Error("empty string argument should be unset")
	}
	if _, ok := intArg(args, "i"); ok {
		t.Error("empty int argument should be unset")
	}
	if _, ok := floatArg(args, "f"); ok {
		t.Error("empty float argument should be unset")
	}
	if got := stringsArg(args, "l"); got != nil {
		t.Errorf("empty list argument should be unset, got %q", got)
	}
}

func TestLlamaDefaults(t *testing.T) {
	p := &recordingProvider{reply: "ok"}
	r := NewDefaultRegistry(p.factory, wordCounter{})
	if _, err := r.New("llama2.py", "LLAMA2", Options{}); err != nil {
		t.Fatal(err)
	}
	cfg := p.configs[0]
	if cfg.BaseURL != "http://localhost:11434/v1" || cfg.Model != "llama2" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestChatModelPromptShape(t *testing.T) {
	p := &recordingProvider{reply: "answer"}
	m := NewChatModel("test", p, Options{
		SystemMessage: "be nice",
		Memory:        map[string]any{"k": 1},
	}, wordCounter{})

	for _, q := range []string{"first", "second", "third"} {
		if _, err := m.Prompt(context.Background(), q, nil); err != nil {
			t.Fatal(err)
		}
	}

	last := p.prompts[2]
	want := []llm.Message{
		{Role: llm.RoleSystem, Content: "be nice"},
		{Role: llm.RoleUser, Content: "second"},
		{Role: llm.RoleAssistant, Content: "answer"},
		{Role: llm.RoleUser, Content: "third"},
	}
	if len(last) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), last)
	}
	for i := range want {
		if last[i] != want[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], last[i])
		}
	}

	if _, err := m.PromptWithoutMemory(context.Background(), "solo", nil); err != nil {
		t.Fatal(err)
	}
	if len(p.prompts[3]) != 1 {
		t.Errorf("expected a single message without memory, got %+v", p.prompts[3])
	}
}

func TestChatModelFailureRecordsNothing(t *testing.T) {
	boom := errors.New("boom")
	p := &recordingProvider{reply: "partial", err: boom}
	m := NewChatModel("test", p, Options{}, wordCounter{})

	if _, err := m.Prompt(context.Background(), "q", nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var ended bool
	if _, err := m.Prompt(context.Background(), "q", HandlerFuncs{End: func(string) { ended = true }}); !errors.Is(err, boom) {
		t.Fatalf("expected boom from stream, got %v", err)
	}
	if ended {
		t.Error("OnEnd should not fire for a failed stream")
	}
	if len(m.Messages()) != 0 {
		t.Errorf("expected no recorded messages, got %d", len(m.Messages()))
	}
}

func TestWindowMemoryTokenLimit(t *testing.T) {
	history := []schema.Message{
		{Text: "one two three", Type: schema.MessageUser},
		{Text: "four five", Type: schema.MessageAI},
		{Text: "six", Type: schema.MessageUser},
		{Text: "seven eight", Type: schema.MessageAI},
	}

	m := NewWindowMemory(map[string]any{"max_token_limit": 4}, wordCounter{})
	got := m.Window(history)
	if len(got) != 2 || got[0].Content != "six" {
		t.Errorf("unexpected window: %+v", got)
	}

	m = NewWindowMemory(map[string]any{"k": 0}, wordCounter{})
	if got := m.Window(history); len(got) != 0 {
		t.Errorf("expected empty window for k=0, got %+v", got)
	}

	m = NewWindowMemory(nil, wordCounter{})
	if m.K != 5 {
		t.Errorf("expected default window of 5, got %d", m.K)
	}
}
