package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/vocab"
)

// globalBlockedInPrompt caps how many global phrases are listed in the review prompt.
const globalBlockedInPrompt = 20

// revisedMarkers identify the heading that introduces the revised article.
var revisedMarkers = []string{"修改后版本", "修改后的版本", "修订版", "Revised"}

type reviewStep struct{ Deps }

func (s *reviewStep) Step() int    { return 8 }
func (s *reviewStep) Name() string { return StepReview }

func (s *reviewStep) Execute(ctx context.Context, in Input) (*Result, error) {
	draft := strings.TrimSpace(in.Task.DraftText)
	if draft == "" {
		draft = strings.TrimSpace(in.Prior[7].Output)
	}
	if draft == "" {
		return nil, fmt.Errorf("no draft to review")
	}

	var notes []types.LogNote
	var global vocab.List
	if s.Blocked != nil {
		list, err := s.Blocked.Blocked(ctx)
		if err != nil {
			notes = append(notes, warn(8, "global blocked phrases unavailable: %v", err))
		} else {
			global = list
		}
	}

	personality, channelBlocked := "无", []string(nil)
	if in.Channel != nil {
		if in.Channel.BrandPersonality != "" {
			personality = in.Channel.BrandPersonality
		}
		channelBlocked = in.Channel.BlockedPhrases
	}

	globalLines := global.PromptLines(globalBlockedInPrompt)
	if globalLines == "" {
		globalLines = "- 无"
	}
	out, err := s.generate(ctx, call{
		prompt: "review",
		data: map[string]string{
			"Personality":    personality,
			"Style":          RenderStyle(in.Style),
			"GlobalBlocked":  globalLines,
			"ChannelBlocked": joinOr(channelBlocked, ", ", "无"),
			"Draft":          draft,
		},
		temperature: 0.3,
		maxTokens:   10000,
	})
	if err != nil {
		return nil, err
	}

	final, revised := textAfterHeading(out, revisedMarkers...)
	if !revised {
		final = out
		notes = append(notes, warn(8, "review has no revised version section, using the full review text"))
	}

	scanList := global.Merge("channel", channelBlocked)
	review := Review{
		Revised:       revised,
		WordCount:     style.WordCount(final),
		BlockedHits:   vocab.Scan(final, scanList),
		BlockedListed: len(scanList),
	}
	if review.BlockedHits == nil {
		review.BlockedHits = []vocab.Hit{}
	}
	for _, hit := range review.BlockedHits {
		msg := fmt.Sprintf("blocked phrase %q still present (%d times)", hit.Phrase, hit.Count)
		if hit.Replacement != "" {
			msg += ", suggested: " + hit.Replacement
		}
		notes = append(notes, types.LogNote{Step: 8, Level: types.LogWarn, Message: msg})
	}

	data, err := encode(review)
	if err != nil {
		return nil, err
	}
	return &Result{
		Output:     out,
		Data:       data,
		LogMessage: "three-pass review: content, style, details",
		Fields:     types.StepFields{FinalText: strPtr(final)},
		Notes:      notes,
	}, nil
}
