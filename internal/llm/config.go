// Package llm provides centralized LLM configuration and text-generation clients.
// Every provider is exposed through the same Generator interface so step handlers
// never depend on a concrete SDK.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: brief analysis, checklists, tag suggestions
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning: research synthesis, topic proposals
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form writing and review
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI chat completions provider
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic is the Anthropic provider, reached through langchaingo
	ProviderAnthropic Provider = "anthropic"
	// ProviderOllama is a local Ollama server, reached through langchaingo
	ProviderOllama Provider = "ollama"
	// ProviderStub returns canned text and never leaves the process
	ProviderStub Provider = "stub"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways, Ollama host).
	BaseURL string
}

// DefaultConfig returns the default configuration (Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultConfigFor returns the default model set for a provider.
func DefaultConfigFor(p Provider) (*Config, error) {
	switch p {
	case ProviderGemini, "":
		return DefaultGeminiConfig(), nil
	case ProviderOpenAI:
		return &Config{Provider: ProviderOpenAI, Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o",
			TierAdvanced: "gpt-4o",
		}}, nil
	case ProviderAnthropic:
		return &Config{Provider: ProviderAnthropic, Models: map[ModelTier]string{
			TierLite:     "claude-3-5-haiku-latest",
			TierStandard: "claude-3-7-sonnet-latest",
			TierAdvanced: "claude-3-7-sonnet-latest",
		}}, nil
	case ProviderOllama:
		return &Config{Provider: ProviderOllama, BaseURL: "http://localhost:11434", Models: map[ModelTier]string{
			TierLite:     "qwen2.5:7b",
			TierStandard: "qwen2.5:14b",
			TierAdvanced: "qwen2.5:32b",
		}}, nil
	case ProviderStub:
		return &Config{Provider: ProviderStub, Models: map[ModelTier]string{TierStandard: "stub"}}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p)
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		Models:   make(map[ModelTier]string, len(c.Models)+1),
		BaseURL:  c.BaseURL,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
