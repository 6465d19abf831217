package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/article-agent/internal/curation"
	"github.com/jonathan/article-agent/internal/pipeline/steps"
	"github.com/jonathan/article-agent/internal/retrieval"
	"github.com/jonathan/article-agent/internal/types"
)

// MaterialGatherer collects curated materials for a step that needs them.
type MaterialGatherer interface {
	Gather(ctx context.Context, in steps.Input) (*steps.MaterialSet, error)
}

// RetrievalGatherer retrieves materials for the task topic and curates them.
type RetrievalGatherer struct {
	retriever *retrieval.Retriever
	curator   *curation.Curator
	k         int
}

// NewRetrievalGatherer creates a gatherer returning at most k raw hits to the curator.
func NewRetrievalGatherer(retriever *retrieval.Retriever, curator *curation.Curator, k int) *RetrievalGatherer {
	if k <= 0 {
		k = 10
	}
	return &RetrievalGatherer{retriever: retriever, curator: curator, k: k}
}

// Gather implements MaterialGatherer.
func (g *RetrievalGatherer) Gather(ctx context.Context, in steps.Input) (*steps.MaterialSet, error) {
	query := steps.TopicOf(in)
	keywords := steps.KeywordsOf(in)
	if len(keywords) == 0 && query != "" {
		keywords = strings.Fields(query)
	}

	hits, method, err := g.retriever.Search(ctx, in.Task.ChannelID, query, keywords, g.k)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve materials: %w", err)
	}

	curated, err := g.curator.Curate(ctx, Candidates(hits))
	if err != nil {
		return nil, fmt.Errorf("failed to curate materials: %w", err)
	}
	return &steps.MaterialSet{Curated: curated, Method: method, Query: query}, nil
}

// Candidates converts retrieval hits to curation candidates, keeping order.
// The candidate score is the hit similarity.
func Candidates(hits []types.ScoredMaterial) []curation.Candidate {
	out := make([]curation.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, curation.Candidate{
			ID:      h.ID.String(),
			Content: h.Content,
			Source:  h.Source,
			Score:   h.Similarity,
			Type:    h.MaterialType,
			Tags:    types.CloneStrings(h.Tags),
		})
	}
	return out
}
