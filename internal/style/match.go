package style

import (
	"sort"
	"strings"

	"github.com/jonathan/article-agent/internal/types"
)

// Tag weights for sample matching. Curator tags dominate model suggestions.
const (
	CustomTagWeight    = 3
	SuggestedTagWeight = 1
)

// SampleMatch is one ranked sample suggestion.
type SampleMatch struct {
	SampleID    string   `json:"sample_id"`
	Title       string   `json:"title"`
	Score       int      `json:"score"`
	MatchedTags []string `json:"matched_tags,omitempty"`
	IsAnalyzed  bool     `json:"is_analyzed"`
}

// MatchSamples ranks samples by weighted tag overlap with keywords.
// Ties keep input order. Samples with no overlap are kept at the end so
// a channel with untagged samples still gets suggestions.
func MatchSamples(samples []types.StyleSample, keywords []string) []SampleMatch {
	keys := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = normalizeTag(k); k != "" {
			keys = append(keys, k)
		}
	}

	matches := make([]SampleMatch, 0, len(samples))
	for i := range samples {
		s := &samples[i]
		m := SampleMatch{SampleID: s.ID.String(), Title: s.Title, IsAnalyzed: s.IsAnalyzed}
		seen := map[string]bool{}
		score := func(tags []string, weight int) {
			for _, tag := range tags {
				n := normalizeTag(tag)
				if n == "" || seen[n] {
					continue
				}
				for _, k := range keys {
					if strings.Contains(n, k) || strings.Contains(k, n) {
						seen[n] = true
						m.Score += weight
						m.MatchedTags = append(m.MatchedTags, tag)
						break
					}
				}
			}
		}
		score(s.CustomTags, CustomTagWeight)
		score(s.AISuggestedTags, SuggestedTagWeight)
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#")))
}
