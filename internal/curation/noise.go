package curation

import (
	"fmt"
	"regexp"
	"strings"
)

// NoiseFilter drops promotional snippets matching any configured pattern.
type NoiseFilter struct {
	re       *regexp.Regexp
	patterns int
}

// CompileNoise builds one case-insensitive alternation from patterns.
// An empty pattern list yields a filter that keeps everything.
func CompileNoise(patterns []string) (*NoiseFilter, error) {
	parts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
		parts = append(parts, "(?:"+p+")")
	}
	if len(parts) == 0 {
		return &NoiseFilter{}, nil
	}
	re, err := regexp.Compile("(?i)" + strings.Join(parts, "|"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile noise patterns: %w", err)
	}
	return &NoiseFilter{re: re, patterns: len(parts)}, nil
}

// Match reports whether content looks promotional.
func (f *NoiseFilter) Match(content string) bool {
	return f != nil && f.re != nil && f.re.MatchString(content)
}

// Filter returns the candidates that do not match, preserving order.
func (f *NoiseFilter) Filter(items []Candidate) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		if !f.Match(item.Content) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of compiled patterns.
func (f *NoiseFilter) Len() int {
	if f == nil {
		return 0
	}
	return f.patterns
}
