package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Generator using the official openai-go SDK (chat completions).
type OpenAIClient struct {
	client openai.Client
	config *Config
}

// NewOpenAIClient creates an OpenAI client. config.BaseURL may point at any
// OpenAI-compatible gateway.
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key missing")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), config: config}, nil
}

// Generate runs one chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	modelName, err := modelFor(c.config, req.Tier)
	if err != nil {
		return "", &GenerationError{Provider: ProviderOpenAI, Message: err.Error()}
	}

	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelName),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &GenerationError{Provider: ProviderOpenAI, Model: modelName, Message: "chat completion failed", Cause: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &GenerationError{Provider: ProviderOpenAI, Model: modelName, Message: "empty choices"}
	}

	text := resp.Choices[0].Message.Content
	if req.JSON {
		return CleanJSONBlock(text), nil
	}
	return text, nil
}

// Close is a no-op; the HTTP client holds no long-lived resources.
func (c *OpenAIClient) Close() error { return nil }
