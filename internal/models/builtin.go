package models

import (
	"fmt"

	"github.com/user/chatverse/pkg/llm"
	"github.com/user/chatverse/pkg/llm/openai"
)

const (
	defaultChatGPTModel = "gpt-3.5-turbo"
	defaultLlamaBaseURL = "http://localhost:11434/v1"
	defaultLlamaModel   = "llama2"
)

// ProviderFactory builds the provider behind an API-backed model.
type ProviderFactory func(cfg *llm.Config) llm.Provider

// OpenAIProvider is the ProviderFactory used outside tests.
func OpenAIProvider(cfg *llm.Config) llm.Provider {
	return openai.New(cfg)
}

// NewDefaultRegistry returns a registry holding every built-in model.
func NewDefaultRegistry(newProvider ProviderFactory, counter TokenCounter) *Registry {
	r := NewRegistry()
	RegisterBuiltins(r, newProvider, counter)
	return r
}

// RegisterBuiltins adds the fake, fake-list, ChatGPT and LLAMA2 models.
func RegisterBuiltins(r *Registry, newProvider ProviderFactory, counter TokenCounter) {
	if newProvider == nil {
		newProvider = OpenAIProvider
	}
	if counter == nil {
		counter = ApproxCounter{}
	}

	r.Register("base_model", "BaseLLMModel", func(opts Options) (Model, error) {
		return NewChatModel("BaseLLMModel", newFakeProvider(nil), opts, counter), nil
	})

	r.Register("base_langchain_model", "BaseLangChainModel", func(opts Options) (Model, error) {
		return NewChatModel("BaseLangChainModel", newFakeProvider(stringsArg(opts.Args, "responses")), opts, counter), nil
	})

	r.Register("chat_gpt", "ChatGPT", func(opts Options) (Model, error) {
		cfg := providerConfig(opts.Args, defaultChatGPTModel)
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai_api_key is required")
		}
		if base, ok := stringArg(opts.Args, "openai_api_base"); ok {
			cfg.BaseURL = base
		}
		return NewChatModel("ChatGPT", newProvider(cfg), opts, counter), nil
	})

	r.Register("llama2", "LLAMA2", func(opts Options) (Model, error) {
		cfg := providerConfig(opts.Args, defaultLlamaModel)
		cfg.BaseURL = defaultLlamaBaseURL
		for _, key := range []string{"base_url", "openai_api_base"} {
			if base, ok := stringArg(opts.Args, key); ok {
				cfg.BaseURL = base
				break
			}
		}
		if cfg.APIKey == "" {
			cfg.APIKey = "llama2"
		}
		return NewChatModel("LLAMA2", newProvider(cfg), opts, counter), nil
	})
}

func providerConfig(args map[string]any, defaultModel string) *llm.Config {
	cfg := &llm.Config{Model: defaultModel}
	if name, ok := stringArg(args, "model_name"); ok {
		cfg.Model = name
	}
	if key, ok := stringArg(args, "openai_api_key"); ok {
		cfg.APIKey = key
	}
	if t, ok := floatArg(args, "temperature"); ok {
		cfg.Temperature = float32(t)
	}
	if n, ok := intArg(args, "max_tokens"); ok {
		cfg.MaxTokens = n
	}
	return cfg
}
