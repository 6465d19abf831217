package steps

import (
	"fmt"
	"strings"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/types"
)

// briefAnalysisOf returns the parsed step-1 analysis, or a zero value.
func briefAnalysisOf(in Input) BriefAnalysis {
	var a BriefAnalysis
	decodePrior(in, 1, &a)
	return a
}

// briefTextOf returns the step-1 analysis text, falling back to the raw brief.
func briefTextOf(in Input) string {
	if out, ok := in.Prior[1]; ok && out.Output != "" {
		return out.Output
	}
	return in.Task.Brief
}

// TopicOf picks the confirmed topic, then the first proposal, then the title or brief.
func TopicOf(in Input) string {
	if t := strings.TrimSpace(in.Task.SelectedTopic); t != "" {
		return t
	}
	var proposals TopicProposals
	if decodePrior(in, 3, &proposals) && len(proposals.Topics) > 0 {
		return proposals.Topics[0].Title
	}
	if t := strings.TrimSpace(in.Task.Title); t != "" {
		return t
	}
	return llm.Truncate(strings.TrimSpace(in.Task.Brief), 200)
}

// knowledgeOf renders what is known for prompts: the summary first, then notes.
func knowledgeOf(in Input, maxRunes int) string {
	var parts []string
	if s := strings.TrimSpace(in.Task.KnowledgeSummary); s != "" {
		parts = append(parts, s)
	}
	if k := strings.TrimSpace(in.Task.KnowledgeText); k != "" {
		parts = append(parts, llm.Truncate(k, maxRunes))
	}
	if len(parts) == 0 {
		return "无"
	}
	return strings.Join(parts, "\n\n")
}

// KeywordsOf merges step-1 keywords with the channel material tags, deduplicated.
func KeywordsOf(in Input) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	for _, k := range briefAnalysisOf(in).Keywords {
		add(k)
	}
	if in.Channel != nil {
		for _, tag := range in.Channel.MaterialTags {
			add(tag)
		}
	}
	return out
}

// RenderStyle renders an effective style as prompt-ready lines.
func RenderStyle(s *types.EffectiveStyle) string {
	if s == nil {
		return "无"
	}
	var sb strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(&sb, "- %s：%s\n", label, value)
	}
	if len(s.StructuralSequence) > 0 {
		line("结构顺序", strings.Join(s.StructuralSequence, " → "))
	}
	line("开头方式", s.Dimensions.Opening)
	line("句式特点", s.Dimensions.SentencePattern)
	line("段落节奏", s.Dimensions.ParagraphRhythm)
	line("常用表达", s.Dimensions.Expressions)
	line("语气", s.Dimensions.Tone)
	line("结尾方式", s.Dimensions.Ending)
	if len(s.PreferredVocabulary) > 0 {
		line("推荐词汇", strings.Join(s.PreferredVocabulary, "、"))
	}
	if len(s.AvoidedVocabulary) > 0 {
		line("避免词汇", strings.Join(s.AvoidedVocabulary, "、"))
	}
	for _, g := range s.WritingGuidelines {
		line("写作准则", g)
	}
	if s.CustomRequirement != "" {
		line("特别要求", s.CustomRequirement)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatMaterials numbers curated items as [M1], [M2], ... using summaries for long items.
func formatMaterials(items []curation.Curated) string {
	if len(items) == 0 {
		return "无"
	}
	var sb strings.Builder
	for i, m := range items {
		body := m.Content
		if m.Summary != "" {
			body = m.Summary
		}
		label := m.Type
		if m.Source != "" {
			label = strings.TrimSpace(label + " " + m.Source)
		}
		if label != "" {
			fmt.Fprintf(&sb, "[M%d]（%s）%s\n", i+1, label, body)
		} else {
			fmt.Fprintf(&sb, "[M%d] %s\n", i+1, body)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
