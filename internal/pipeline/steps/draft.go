package steps

import (
	"context"
	"strings"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
)

type draftStep struct{ Deps }

func (s *draftStep) Step() int    { return 7 }
func (s *draftStep) Name() string { return StepDraft }

func (s *draftStep) Execute(ctx context.Context, in Input) (*Result, error) {
	ch := in.Channel
	if ch == nil {
		ch = &types.Channel{}
	}
	role := ch.Role
	if role == "" {
		role = "你是一位经验丰富的中文内容作者。"
	}

	// avoided vocabulary already carries the channel's banned phrases
	blocked := ch.BlockedPhrases
	if in.Style != nil && len(in.Style.AvoidedVocabulary) > 0 {
		blocked = in.Style.AvoidedVocabulary
	}

	var plan StylePlan
	var materials []curation.Curated
	if decodePrior(in, 5, &plan) {
		materials = plan.Materials
	}
	userMaterials := strings.TrimSpace(in.Task.UserMaterials)
	if userMaterials == "" {
		userMaterials = "无"
	}

	out, err := s.generate(ctx, call{
		prompt: "draft",
		data: map[string]string{
			"Role":          role,
			"WritingStyle":  bulletList(ch.WritingStyle),
			"ForbiddenTone": joinOr(ch.ForbiddenTone, "、", "无"),
			"PreferredTone": joinOr(ch.PreferredTone, "、", "无"),
			"Style":         RenderStyle(in.Style),
			"MustDo":        bulletList(ch.MustDo),
			"MustNotDo":     bulletList(ch.MustNotDo),
			"Blocked":       joinOr(blocked, "、", "无"),
			"Topic":         TopicOf(in),
			"Knowledge":     knowledgeOf(in, 4000),
			"Materials":     formatMaterials(materials),
			"UserMaterials": userMaterials,
		},
		temperature: 0.7,
		maxTokens:   8000,
	})
	if err != nil {
		return nil, err
	}

	label := style.SourceBuiltinDefault
	if in.Style != nil {
		label = in.Style.SourceLabel
	}
	draft := DraftInfo{WordCount: style.WordCount(out), StyleSource: label, MaterialCount: len(materials)}
	data, err := encode(draft)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:     out,
		Data:       data,
		LogMessage: "drafting for channel " + ch.Name + " with style from " + label,
		Fields:     types.StepFields{DraftText: strPtr(out)},
		Notes:      []types.LogNote{info(7, "draft has %d words using %d materials", draft.WordCount, draft.MaterialCount)},
	}, nil
}
