package models

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text the way a model's tokenizer would.
type TokenCounter interface {
	Count(text string) int
}

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken selects the encoding for model, falling back to cl100k_base
// for unknown models.
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// ApproxCounter estimates four bytes per token. It stands in when no
// encoding can be loaded.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

var (
	defaultCounterOnce sync.Once
	defaultCounter     TokenCounter
)

// DefaultCounter returns a shared cl100k_base counter, or ApproxCounter
// when the encoding is unavailable.
func DefaultCounter() TokenCounter {
	defaultCounterOnce.Do(func() {
		t, err := NewTiktoken("gpt-3.5-turbo")
		if err != nil {
			defaultCounter = ApproxCounter{}
			return
		}
		defaultCounter = t
	})
	return defaultCounter
}
