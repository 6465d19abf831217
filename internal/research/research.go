// Package research gathers web sources for the knowledge step of a writing task.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Result is a single web search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// Searcher runs one web query.
type Searcher interface {
	// Available reports whether the searcher is configured (e.g. has an API key).
	Available() bool
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Source is a reference kept in the knowledge step output.
type Source struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date,omitempty"`
}

// Findings is the merged outcome of a research run.
type Findings struct {
	Sources    []Source `json:"sources"`
	Context    string   `json:"-"`
	QueryCount int      `json:"query_count"`
	Results    []Result `json:"-"`
}

// Options tunes a research run.
type Options struct {
	QuerySuffixes  []string `yaml:"query_suffixes"`
	PerQuery       int      `yaml:"per_query"`
	MaxResults     int      `yaml:"max_results"`
	ExcerptRunes   int      `yaml:"excerpt_runes"`
	ExcludeDomains []string `yaml:"exclude_domains"`
}

// DefaultOptions returns the default three-angle query set with a top-8 cut.
func DefaultOptions() Options {
	return Options{
		QuerySuffixes: []string{"研究 学术", "专家观点 分析", "数据 报告"},
		PerQuery:      3,
		MaxResults:    8,
		ExcerptRunes:  500,
	}
}

// QueriesFor builds the search queries for topic.
func QueriesFor(topic string, opts Options) []string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	queries := make([]string, 0, len(opts.QuerySuffixes))
	for _, suffix := range opts.QuerySuffixes {
		queries = append(queries, topic+" "+suffix)
	}
	if len(queries) == 0 {
		queries = append(queries, topic)
	}
	return queries
}

// Research runs every query for topic, dedups hits by URL, sorts them by score
// and keeps the best MaxResults. An unavailable searcher yields empty findings.
// Individual query failures are logged and skipped.
func Research(ctx context.Context, s Searcher, topic string, opts Options, logger *slog.Logger) (*Findings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	queries := QueriesFor(topic, opts)
	findings := &Findings{Sources: []Source{}, QueryCount: len(queries)}
	if s == nil || !s.Available() || len(queries) == 0 {
		return findings, nil
	}

	var all []Result
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := s.Search(ctx, q, opts.PerQuery)
		if err != nil {
			logger.Warn("research query failed", "query", q, "error", err)
			continue
		}
		all = append(all, results...)
	}

	all = FilterDomains(DedupByURL(all), opts.ExcludeDomains)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if opts.MaxResults > 0 && len(all) > opts.MaxResults {
		all = all[:opts.MaxResults]
	}

	findings.Results = all
	for _, r := range all {
		findings.Sources = append(findings.Sources, Source{Title: r.Title, URL: r.URL, PublishedDate: r.PublishedDate})
	}
	findings.Context = FormatContext(all, opts.ExcerptRunes)
	return findings, nil
}

// DedupByURL keeps the first hit for each normalized URL.
func DedupByURL(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := normalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// FormatContext renders results as numbered source blocks for a prompt.
func FormatContext(results []Result, excerptRunes int) string {
	var sb strings.Builder
	for i, r := range results {
		content := r.Content
		if excerptRunes > 0 {
			if rs := []rune(content); len(rs) > excerptRunes {
				content = string(rs[:excerptRunes])
			}
		}
		if content == "" {
			content = "(no summary)"
		}
		fmt.Fprintf(&sb, "[Source %d] %s\nURL: %s\nSummary: %s\n\n", i+1, r.Title, r.URL, content)
	}
	return strings.TrimSpace(sb.String())
}

// cleanText strips zero-width and non-printable characters from search snippets.
func cleanText(s string) string {
	s = strings.NewReplacer("\u00a0", " ", "\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "").Replace(s)
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return ' '
		}
		return r
	}, s))
}
