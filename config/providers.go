package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
	llmanthropic "github.com/aschepis/agentloop/llm/anthropic"
	llmollama "github.com/aschepis/agentloop/llm/ollama"
	llmopenai "github.com/aschepis/agentloop/llm/openai"
)

// NewLLMClient constructs a provider client for a resolved key. The Ollama
// extraction mode comes from config since the resolver has no opinion on how
// a model surfaces tool calls.
func NewLLMClient(key *llm.ClientKey, cfg *Config, logger zerolog.Logger) (llm.Client, error) {
	switch key.Provider {
	case llm.ProviderAnthropic:
		return llmanthropic.NewClient(key.APIKey, logger)

	case llm.ProviderOpenAI:
		return llmopenai.NewClient(key.APIKey, key.BaseURL, key.Model, key.Organization)

	case llm.ProviderOllama:
		var opts []llmollama.Option
		switch cfg.Ollama.Extraction {
		case "", "native":
		case "tags":
			opts = append(opts, llmollama.WithTagParsing())
		case "json":
			opts = append(opts, llmollama.WithJSONMode())
		default:
			return nil, fmt.Errorf("unknown ollama extraction mode: %q", cfg.Ollama.Extraction)
		}
		return llmollama.NewClient(key.Host, key.Model, logger, opts...)

	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
}
