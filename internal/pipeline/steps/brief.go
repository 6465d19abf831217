package steps

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonathan/article-agent/internal/llm"
)

type briefStep struct{ Deps }

func (s *briefStep) Step() int    { return 1 }
func (s *briefStep) Name() string { return StepBrief }

func (s *briefStep) Execute(ctx context.Context, in Input) (*Result, error) {
	out, err := s.generate(ctx, call{
		prompt:      "brief",
		data:        map[string]string{"Brief": in.Task.Brief},
		temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	analysis := ParseBriefAnalysis(out)
	data, err := encode(analysis)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Output:     out,
		Data:       data,
		LogMessage: "analyzing brief: " + llm.Truncate(in.Task.Brief, 100),
	}
	if len(analysis.Keywords) == 0 {
		res.Notes = append(res.Notes, warn(1, "no keywords found in brief analysis"))
	} else {
		res.Notes = append(res.Notes, info(1, "keywords: %s", strings.Join(analysis.Keywords, ", ")))
	}
	return res, nil
}

var (
	briefLine    = regexp.MustCompile(`^\s*(?:\d+\s*[.、)]\s*)?\**(主题|目标读者|期望字数|特殊要求|关键词)\**\s*[:：]\s*(.*)$`)
	keywordSplit = regexp.MustCompile(`[、,，;；/|\s]+`)
)

// ParseBriefAnalysis reads the labelled lines of a brief analysis.
// Unlabelled text is ignored.
func ParseBriefAnalysis(text string) BriefAnalysis {
	var a BriefAnalysis
	for _, line := range strings.Split(text, "\n") {
		m := briefLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(strings.Trim(m[2], "*"))
		switch m[1] {
		case "主题":
			a.Theme = value
		case "目标读者":
			a.Audience = value
		case "期望字数":
			a.Length = value
		case "特殊要求":
			a.Requirements = value
		case "关键词":
			for _, k := range keywordSplit.Split(value, -1) {
				k = strings.TrimSpace(strings.TrimPrefix(k, "#"))
				if k != "" {
					a.Keywords = append(a.Keywords, k)
				}
			}
		}
	}
	return a
}
