// Package curation filters, deduplicates and classifies retrieved materials
// before they are handed to a prompt.
package curation

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Candidate is one raw retrieved snippet in retrieval order.
type Candidate struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Source  string   `json:"source,omitempty"`
	Score   float64  `json:"score"`
	Type    string   `json:"material_type,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Curated is a surviving candidate. Summary is only set for long items.
type Curated struct {
	Candidate
	Summary string `json:"summary,omitempty"`
}

// Stats counts survivors after each stage.
type Stats struct {
	Input        int `json:"input"`
	AfterNoise   int `json:"after_noise"`
	AfterSource  int `json:"after_source"`
	AfterContent int `json:"after_content"`
	Long         int `json:"long"`
	Short        int `json:"short"`
}

// Result is the classified curator output.
type Result struct {
	Long  []Curated `json:"long"`
	Short []Curated `json:"short"`
	Stats Stats     `json:"stats"`
}

// All returns long then short items.
func (r *Result) All() []Curated {
	out := make([]Curated, 0, len(r.Long)+len(r.Short))
	out = append(out, r.Long...)
	return append(out, r.Short...)
}

// Summarizer produces an abstractive summary for a long item.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Options configure the pipeline. Use DefaultOptions and adjust.
type Options struct {
	NoiseFilter         bool    `yaml:"noise_filter"`
	SourceDedup         bool    `yaml:"source_dedup"`
	ContentDedup        bool    `yaml:"content_dedup"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
	ShingleSize         int     `yaml:"shingle_size" validate:"min=1"`
	LongThreshold       int     `yaml:"long_threshold" validate:"min=1"`
	SummaryRunes        int     `yaml:"summary_runes" validate:"min=1"`
	SummaryConcurrency  int     `yaml:"summary_concurrency" validate:"min=1"`
}

// DefaultOptions enables every stage with the standard thresholds.
func DefaultOptions() Options {
	return Options{
		NoiseFilter:         true,
		SourceDedup:         true,
		ContentDedup:        true,
		SimilarityThreshold: 0.85,
		ShingleSize:         2,
		LongThreshold:       200,
		SummaryRunes:        100,
		SummaryConcurrency:  4,
	}
}

// Curator runs the four curation stages in order.
type Curator struct {
	opts       Options
	noise      *NoiseFilter
	summarizer Summarizer
	logger     *slog.Logger
}

// NewCurator creates a curator. noise and summarizer may be nil.
func NewCurator(opts Options, noise *NoiseFilter, summarizer Summarizer, logger *slog.Logger) *Curator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = def.SimilarityThreshold
	}
	if opts.ShingleSize <= 0 {
		opts.ShingleSize = def.ShingleSize
	}
	if opts.LongThreshold <= 0 {
		opts.LongThreshold = def.LongThreshold
	}
	if opts.SummaryRunes <= 0 {
		opts.SummaryRunes = def.SummaryRunes
	}
	if opts.SummaryConcurrency <= 0 {
		opts.SummaryConcurrency = def.SummaryConcurrency
	}
	return &Curator{opts: opts, noise: noise, summarizer: summarizer, logger: logger}
}

// Curate filters, deduplicates and classifies in. Empty input yields an empty
// result. The only error is a done context.
func (c *Curator) Curate(ctx context.Context, in []Candidate) (*Result, error) {
	res := &Result{Long: []Curated{}, Short: []Curated{}}
	res.Stats.Input = len(in)
	if len(in) == 0 {
		return res, nil
	}

	items := append([]Candidate(nil), in...)

	if c.opts.NoiseFilter && c.noise != nil {
		items = c.noise.Filter(items)
	}
	res.Stats.AfterNoise = len(items)

	if c.opts.SourceDedup {
		items = DedupBySource(items)
	}
	res.Stats.AfterSource = len(items)

	if c.opts.ContentDedup {
		items = DedupByContent(items, c.opts.ShingleSize, c.opts.SimilarityThreshold)
	}
	res.Stats.AfterContent = len(items)

	for _, item := range items {
		if len([]rune(item.Content)) > c.opts.LongThreshold {
			res.Long = append(res.Long, Curated{Candidate: item, Summary: Excerpt(item.Content, c.opts.SummaryRunes)})
		} else {
			res.Short = append(res.Short, Curated{Candidate: item})
		}
	}
	res.Stats.Long, res.Stats.Short = len(res.Long), len(res.Short)

	if err := c.summarize(ctx, res.Long); err != nil {
		return nil, err
	}

	if res.Stats.AfterContent < res.Stats.Input {
		c.logger.Debug("materials curated",
			"input", res.Stats.Input,
			"after_noise", res.Stats.AfterNoise,
			"after_source", res.Stats.AfterSource,
			"after_content", res.Stats.AfterContent)
	}
	return res, nil
}

// summarize replaces extractive summaries with abstractive ones where the
// summarizer succeeds. A failing item keeps its excerpt.
func (c *Curator) summarize(ctx context.Context, long []Curated) error {
	if c.summarizer == nil || len(long) == 0 {
		return ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.SummaryConcurrency)
	for i := range long {
		g.Go(func() error {
			summary, err := c.summarizer.Summarize(gctx, long[i].Content)
			if err != nil {
				c.logger.Warn("summary failed, keeping excerpt", "material_id", long[i].ID, "error", err)
				return nil
			}
			if s := strings.TrimSpace(summary); s != "" {
				long[i].Summary = s
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Excerpt returns the first n runes of s followed by an ellipsis when cut.
func Excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}
