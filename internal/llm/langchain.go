package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LangChainClient implements Generator for providers reached through langchaingo.
// One langchaingo model is created per configured model name.
type LangChainClient struct {
	provider Provider
	config   *Config
	models   map[string]llms.Model
}

// NewLangChainClient creates clients for every model in config.
func NewLangChainClient(config *Config, apiKey string) (*LangChainClient, error) {
	c := &LangChainClient{provider: config.Provider, config: config, models: map[string]llms.Model{}}

	for _, name := range config.Models {
		if _, ok := c.models[name]; ok {
			continue
		}
		var (
			model llms.Model
			err   error
		)
		switch config.Provider {
		case ProviderOllama:
			opts := []ollama.Option{ollama.WithModel(name)}
			if config.BaseURL != "" {
				opts = append(opts, ollama.WithServerURL(config.BaseURL))
			}
			model, err = ollama.New(opts...)
		case ProviderAnthropic:
			if apiKey == "" {
				return nil, fmt.Errorf("anthropic api key required")
			}
			model, err = anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(name))
		default:
			return nil, fmt.Errorf("provider %s is not served by langchaingo", config.Provider)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s model %s: %w", config.Provider, name, err)
		}
		c.models[name] = model
	}
	return c, nil
}

// Generate runs one completion with a system and a human message.
func (c *LangChainClient) Generate(ctx context.Context, req Request) (string, error) {
	modelName, err := modelFor(c.config, req.Tier)
	if err != nil {
		return "", &GenerationError{Provider: c.provider, Message: err.Error()}
	}
	model, ok := c.models[modelName]
	if !ok {
		return "", &GenerationError{Provider: c.provider, Model: modelName, Message: "model not initialized"}
	}

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.User))

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxOutputTokens))
	}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", &GenerationError{Provider: c.provider, Model: modelName, Message: "generate content", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Provider: c.provider, Model: modelName, Message: "no response choices"}
	}

	text := resp.Choices[0].Content
	if req.JSON {
		return CleanJSONBlock(text), nil
	}
	return text, nil
}

// Close is a no-op for langchaingo models.
func (c *LangChainClient) Close() error { return nil }
