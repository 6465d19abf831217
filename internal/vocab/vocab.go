// Package vocab loads the blocked-phrase list used by drafting and review
// and scans text for blocked phrases.
package vocab

import (
	"fmt"
	"strings"
)

// BlockedPhrase is one phrase to avoid, with the preferred replacement.
type BlockedPhrase struct {
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Pattern     string `yaml:"phrase" json:"phrase"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// List is an ordered blocked-phrase list.
type List []BlockedPhrase

// Patterns returns just the phrases, in order.
func (l List) Patterns() []string {
	out := make([]string, 0, len(l))
	for _, p := range l {
		out = append(out, p.Pattern)
	}
	return out
}

// PromptLines renders at most limit entries as "- phrase → replacement （原因：reason）".
// limit <= 0 renders all.
func (l List) PromptLines(limit int) string {
	n := len(l)
	if limit > 0 && limit < n {
		n = limit
	}
	var sb strings.Builder
	for _, p := range l[:n] {
		sb.WriteString("- ")
		sb.WriteString(p.Pattern)
		if p.Replacement != "" {
			sb.WriteString(" → ")
			sb.WriteString(p.Replacement)
		}
		if p.Reason != "" {
			sb.WriteString(fmt.Sprintf(" （原因：%s）", p.Reason))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Merge appends plain channel phrases that are not already in l.
func (l List) Merge(category string, phrases []string) List {
	seen := make(map[string]bool, len(l))
	for _, p := range l {
		seen[strings.ToLower(p.Pattern)] = true
	}
	out := append(List(nil), l...)
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		key := strings.ToLower(phrase)
		if phrase == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, BlockedPhrase{Category: category, Pattern: phrase})
	}
	return out
}
