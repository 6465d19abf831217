// Package retrieval finds channel-visible materials for a query, by vector
// similarity with a keyword fallback.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonathan/article-agent/internal/types"
)

// VectorSearcher returns the k materials nearest to vector that are visible
// to channelID: owned by that channel or global. Implementations enforce the
// visibility rule themselves; callers cannot widen it.
type VectorSearcher interface {
	NearestNeighbors(ctx context.Context, channelID uuid.UUID, vector []float32, k int) ([]types.ScoredMaterial, error)
}

// KeywordSearcher is the fallback used when no embedding is available.
// The same visibility rule applies.
type KeywordSearcher interface {
	SearchKeywords(ctx context.Context, channelID uuid.UUID, keywords []string, k int) ([]types.ScoredMaterial, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever combines vector search with a keyword fallback.
type Retriever struct {
	embedder Embedder
	vectors  VectorSearcher
	keywords KeywordSearcher
	logger   *slog.Logger
}

// NewRetriever creates a retriever. Any collaborator may be nil; with none
// configured Search returns no results.
func NewRetriever(embedder Embedder, vectors VectorSearcher, keywords KeywordSearcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, vectors: vectors, keywords: keywords, logger: logger}
}

// Method names reported by Search.
const (
	MethodVector  = "vector"
	MethodKeyword = "keyword"
	MethodNone    = "none"
)

// Search returns up to k materials for query. It reports which method produced
// the results. Vector failures fall back to keywords; keyword failures are errors.
func (r *Retriever) Search(ctx context.Context, channelID uuid.UUID, query string, keywords []string, k int) ([]types.ScoredMaterial, string, error) {
	if r.embedder != nil && r.vectors != nil && query != "" {
		vec, err := r.embedder.Embed(ctx, query)
		if err == nil {
			hits, err := r.vectors.NearestNeighbors(ctx, channelID, vec, k)
			if err == nil && len(hits) > 0 {
				return hits, MethodVector, nil
			}
			if err != nil {
				r.logger.Warn("vector search failed, using keywords", "channel_id", channelID, "error", err)
			}
		} else {
			r.logger.Warn("query embedding failed, using keywords", "channel_id", channelID, "error", err)
		}
	}

	if r.keywords == nil || len(keywords) == 0 {
		return nil, MethodNone, nil
	}
	hits, err := r.keywords.SearchKeywords(ctx, channelID, keywords, k)
	if err != nil {
		return nil, MethodKeyword, fmt.Errorf("keyword search failed: %w", err)
	}
	return hits, MethodKeyword, nil
}
