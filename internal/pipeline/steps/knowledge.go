package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/research"
	"github.com/jonathan/article-agent/internal/types"
)

// summaryRunes caps the knowledge summary shown at the checkpoint.
const summaryRunes = 300

type knowledgeStep struct{ Deps }

func (s *knowledgeStep) Step() int    { return 2 }
func (s *knowledgeStep) Name() string { return StepKnowledge }

func (s *knowledgeStep) Execute(ctx context.Context, in Input) (*Result, error) {
	query := researchQuery(in)
	findings, err := research.Research(ctx, s.Searcher, query, s.Research, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("research failed: %w", err)
	}

	webSearch := s.Searcher != nil && s.Searcher.Available()
	sources := findings.Context
	if sources == "" {
		sources = "（未检索到网络资料，请仅基于常识列出需要调研与核实的信息点，不要编造具体数据）"
	}

	raw, err := s.generate(ctx, call{
		prompt:      "knowledge",
		data:        map[string]string{"BriefAnalysis": briefTextOf(in), "Sources": sources},
		temperature: 0.3,
		json:        true,
	})
	if err != nil {
		return nil, err
	}
	knowledge, summary := parseKnowledge(raw)

	data, err := encode(Knowledge{
		Query:      query,
		Sources:    findings.Sources,
		QueryCount: findings.QueryCount,
		WebSearch:  webSearch,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:     renderKnowledge(summary, knowledge, findings.Sources),
		Data:       data,
		LogMessage: "researching: " + query,
		Fields:     types.StepFields{KnowledgeText: strPtr(knowledge), KnowledgeSummary: strPtr(summary)},
	}
	if webSearch {
		res.Notes = append(res.Notes, info(2, "web search returned %d sources over %d queries", len(findings.Sources), findings.QueryCount))
	} else {
		res.Notes = append(res.Notes, warn(2, "web search unavailable, knowledge drawn from the model only"))
	}
	return res, nil
}

func researchQuery(in Input) string {
	if theme := strings.TrimSpace(briefAnalysisOf(in).Theme); theme != "" {
		return theme
	}
	if title := strings.TrimSpace(in.Task.Title); title != "" {
		return title
	}
	return llm.Truncate(strings.TrimSpace(in.Task.Brief), 50)
}

// parseKnowledge reads {"knowledge", "summary"}; free text becomes the notes
// with a truncated summary.
func parseKnowledge(raw string) (knowledge, summary string) {
	var parsed struct {
		Knowledge string `json:"knowledge"`
		Summary   string `json:"summary"`
	}
	if obj := llm.ExtractJSONObject(llm.CleanJSONBlock(raw)); obj != "" && json.Unmarshal([]byte(obj), &parsed) == nil && parsed.Knowledge != "" {
		knowledge = strings.TrimSpace(parsed.Knowledge)
		summary = strings.TrimSpace(parsed.Summary)
	} else {
		knowledge = strings.TrimSpace(raw)
	}
	if summary == "" {
		summary = knowledge
	}
	return knowledge, llm.Truncate(summary, summaryRunes)
}

func renderKnowledge(summary, knowledge string, sources []research.Source) string {
	var sb strings.Builder
	sb.WriteString("## 调研结论\n")
	sb.WriteString(summary)
	sb.WriteString("\n\n## 调研笔记\n")
	sb.WriteString(knowledge)
	if len(sources) > 0 {
		sb.WriteString("\n\n## 来源\n")
		for i, src := range sources {
			fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, src.Title, src.URL)
		}
	}
	return strings.TrimSpace(sb.String())
}
