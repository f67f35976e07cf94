package models

import (
	"context"
	"strings"
	"sync"

	"github.com/user/chatverse/pkg/llm"
)

// FakeResponse is what the base model always answers.
const FakeResponse = "This is a fake response"

// fakeProvider answers with canned responses, cycling through them. Streams
// emit one word at a time.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	next      int
}

func newFakeProvider(responses []string) *fakeProvider {
	if len(responses) == 0 {
		responses = []string{FakeResponse}
	}
	return &fakeProvider{responses: responses}
}

func (p *fakeProvider) reply() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.responses[p.next%len(p.responses)]
	p.next++
	return r
}

func (p *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.Response{Content: p.reply()}, nil
}

func (p *fakeProvider) Stream(ctx context.Context, messages []llm.Message) (<-chan llm.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := strings.SplitAfter(p.reply(), " ")
	ch := make(chan llm.Delta, len(words))
	for _, w := range words {
		ch <- llm.Delta{Content: w}
	}
	close(ch)
	return ch, nil
}
