package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/types"
)

// articleExcerptRunes is how much of the article the illustration prompt sees.
const articleExcerptRunes = 2000

type illustrationStep struct{ Deps }

func (s *illustrationStep) Step() int    { return 9 }
func (s *illustrationStep) Name() string { return StepIllustration }

func (s *illustrationStep) Execute(ctx context.Context, in Input) (*Result, error) {
	article := strings.TrimSpace(in.Task.FinalText)
	if article == "" {
		article = strings.TrimSpace(in.Task.DraftText)
	}
	if article == "" {
		return nil, fmt.Errorf("no article to illustrate")
	}

	out, err := s.generate(ctx, call{
		prompt:      "illustration",
		data:        map[string]string{"Article": llm.Truncate(article, articleExcerptRunes)},
		temperature: 0.5,
	})
	if err != nil {
		return nil, err
	}

	html, err := RenderHTML(article)
	if err != nil {
		return nil, err
	}
	ill := Illustration{ImageCount: countImages(out), ArticleHTML: html}
	data, err := encode(ill)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:     out,
		Data:       data,
		LogMessage: "planning illustrations",
		Notes:      []types.LogNote{info(9, "%d illustrations planned, article rendered to HTML", ill.ImageCount)},
	}, nil
}

// countImages counts the level-3 headings of an illustration plan.
func countImages(plan string) int {
	n := 0
	for _, sec := range parseSections(plan) {
		if sec.Level == 3 {
			n++
		}
	}
	return n
}
