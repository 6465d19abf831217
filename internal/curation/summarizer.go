package curation

import (
	"context"

	"github.com/jonathan/article-agent/internal/llm"
)

const summaryPrompt = "用不超过 80 个字概括下面这段素材的核心内容，只输出概括本身：\n\n"

// LLMSummarizer summarizes long materials with the lite model tier.
type LLMSummarizer struct {
	gen llm.Generator
}

// NewLLMSummarizer creates a summarizer backed by gen.
func NewLLMSummarizer(gen llm.Generator) *LLMSummarizer {
	return &LLMSummarizer{gen: gen}
}

// Summarize implements Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	return s.gen.Generate(ctx, llm.Request{
		User:            summaryPrompt + llm.Truncate(content, 3000),
		Temperature:     0.2,
		MaxOutputTokens: 300,
		Tier:            llm.TierLite,
	})
}
