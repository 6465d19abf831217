// Package style resolves the effective style directive for a writing task
// and analyzes style samples into six-dimension profiles.
package style

import "github.com/jonathan/article-agent/internal/types"

// Source labels
const (
	SourceUserOverride   = "user_override"
	SourceSamplePrefix   = "sample:"
	SourceChannelDefault = "channel_default"
	SourceBuiltinDefault = "builtin_default"
)

// Field names used as FieldSources keys.
const (
	FieldCustomRequirement = "custom_requirement"
	FieldStructuralLogic   = "structural_logic"
	FieldWritingGuidelines = "writing_guidelines"
	FieldOpening           = "opening_style"
	FieldSentencePattern   = "sentence_pattern"
	FieldParagraphRhythm   = "paragraph_rhythm"
	FieldExpressions       = "expressions"
	FieldTone              = "tone"
	FieldEnding            = "ending_style"
)

// ResolvedFields lists every field the resolver always fills, in output order.
var ResolvedFields = []string{
	FieldStructuralLogic,
	FieldWritingGuidelines,
	FieldOpening,
	FieldSentencePattern,
	FieldParagraphRhythm,
	FieldExpressions,
	FieldTone,
	FieldEnding,
}

// BuiltinDefault returns the minimal profile used when nothing else is configured.
// A fresh value is returned on each call.
func BuiltinDefault() *types.StyleProfile {
	return &types.StyleProfile{
		Opening: &types.Opening{
			Type:        "story_intro",
			Description: "open with a short, concrete story or scene",
		},
		SentencePattern: &types.SentencePattern{
			AvgLength:   25,
			ShortRatio:  0.6,
			Description: "mostly short sentences with occasional longer ones",
		},
		ParagraphRhythm: &types.ParagraphRhythm{
			Variation:          "medium",
			AvgParagraphLength: 80,
			Description:        "short paragraphs, one idea each",
		},
		Expressions: &types.Expressions{},
		Tone: &types.Tone{
			Type:        "warm_friend",
			Formality:   0.3,
			Description: "talk like a warm, experienced friend",
		},
		Ending: &types.Ending{
			Type:        "reflection",
			Description: "close with a reflection the reader can take away",
		},
		StructuralLogic: []string{"hook", "problem", "insight", "practice", "reflection"},
	}
}
