package steps

import (
	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/research"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/vocab"
)

// BriefAnalysis is the step-1 payload.
type BriefAnalysis struct {
	Theme        string   `json:"theme,omitempty"`
	Audience     string   `json:"audience,omitempty"`
	Length       string   `json:"length,omitempty"`
	Requirements string   `json:"requirements,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Knowledge is the step-2 payload. The notes themselves live on the task.
type Knowledge struct {
	Query      string            `json:"query"`
	Sources    []research.Source `json:"sources"`
	QueryCount int               `json:"query_count"`
	WebSearch  bool              `json:"web_search"`
}

// Topic is one proposed direction.
type Topic struct {
	Title  string   `json:"title"`
	Points []string `json:"points,omitempty"`
}

// TopicProposals is the step-3 payload.
type TopicProposals struct {
	Topics []Topic `json:"topics"`
}

// Checklist is the step-4 payload.
type Checklist struct {
	Topic    string    `json:"topic"`
	Sections []Section `json:"sections"`
}

// StylePlan is the step-5 payload.
type StylePlan struct {
	Topic           string                `json:"topic"`
	Style           *types.EffectiveStyle `json:"style"`
	Samples         []style.SampleMatch   `json:"sample_suggestions"`
	Materials       []curation.Curated    `json:"materials"`
	Stats           curation.Stats        `json:"curation_stats"`
	RetrievalMethod string                `json:"retrieval_method"`
	Query           string                `json:"query,omitempty"`
}

// MaterialsSheet is the step-6 payload.
type MaterialsSheet struct {
	MaterialCount int      `json:"material_count"`
	Method        string   `json:"retrieval_method"`
	Items         []string `json:"items"`
}

// DraftInfo is the step-7 payload.
type DraftInfo struct {
	WordCount     int    `json:"word_count"`
	StyleSource   string `json:"style_source"`
	MaterialCount int    `json:"material_count"`
}

// Review is the step-8 payload.
type Review struct {
	Revised       bool        `json:"revised"`
	WordCount     int         `json:"word_count"`
	BlockedHits   []vocab.Hit `json:"blocked_hits"`
	BlockedListed int         `json:"blocked_listed"`
}

// Illustration is the step-9 payload.
type Illustration struct {
	ImageCount  int    `json:"image_count"`
	ArticleHTML string `json:"article_html"`
}
