package llm

import (
	"context"
	"fmt"
)

// Request is one generation call: a system instruction and a user message.
type Request struct {
	System          string
	User            string
	Temperature     float64
	MaxOutputTokens int
	Tier            ModelTier
	// JSON asks the provider for a bare JSON response where supported.
	JSON bool
}

// Generator is an abstraction over LLM providers.
// Implementations return *GenerationError on provider or network failure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// NewGenerator creates a generator based on configuration.
// apiKey is ignored by providers that do not need one.
func NewGenerator(ctx context.Context, config *Config, apiKey string) (Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	case ProviderAnthropic, ProviderOllama:
		return NewLangChainClient(config, apiKey)
	case ProviderStub:
		return NewStub(nil), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}

func modelFor(config *Config, tier ModelTier) (string, error) {
	if tier == "" {
		tier = TierStandard
	}
	name := config.GetModel(tier)
	if name == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	return name, nil
}
