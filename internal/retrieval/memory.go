package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonathan/article-agent/internal/types"
)

// MemoryIndex is an in-process VectorSearcher and KeywordSearcher using
// brute-force cosine similarity. Suitable for tests and small libraries.
type MemoryIndex struct {
	mu        sync.RWMutex
	materials []types.Material
}

// NewMemoryIndex creates an index over materials.
func NewMemoryIndex(materials ...types.Material) *MemoryIndex {
	idx := &MemoryIndex{}
	for _, m := range materials {
		idx.Add(m)
	}
	return idx
}

// Add inserts or replaces a material by ID.
func (x *MemoryIndex) Add(m types.Material) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.materials {
		if x.materials[i].ID == m.ID {
			x.materials[i] = m
			return
		}
	}
	x.materials = append(x.materials, m)
}

// Remove deletes a material by ID. It reports whether it was present.
func (x *MemoryIndex) Remove(id uuid.UUID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.materials {
		if x.materials[i].ID == id {
			x.materials = append(x.materials[:i], x.materials[i+1:]...)
			return true
		}
	}
	return false
}

// Materials returns a copy of the indexed materials in insertion order.
func (x *MemoryIndex) Materials() []types.Material {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]types.Material(nil), x.materials...)
}

// NearestNeighbors implements VectorSearcher.
func (x *MemoryIndex) NearestNeighbors(ctx context.Context, channelID uuid.UUID, vector []float32, k int) ([]types.ScoredMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []types.ScoredMaterial
	for _, m := range x.materials {
		if !m.VisibleTo(channelID) || len(m.Embedding) == 0 || len(m.Embedding) != len(vector) {
			continue
		}
		hits = append(hits, types.ScoredMaterial{Material: m, Similarity: Cosine(vector, m.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	return limit(hits, k), nil
}

// SearchKeywords implements KeywordSearcher. Score is the fraction of
// keywords contained in the content, weighted by quality.
func (x *MemoryIndex) SearchKeywords(ctx context.Context, channelID uuid.UUID, keywords []string, k int) ([]types.ScoredMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []types.ScoredMaterial
	for _, m := range x.materials {
		if !m.VisibleTo(channelID) {
			continue
		}
		if score := KeywordScore(m.Content, keywords); score > 0 {
			hits = append(hits, types.ScoredMaterial{Material: m, Similarity: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].QualityWeight > hits[j].QualityWeight
	})
	return limit(hits, k), nil
}

// KeywordScore is the fraction of non-empty keywords that appear in content.
func KeywordScore(content string, keywords []string) float64 {
	content = strings.ToLower(content)
	used, matched := 0, 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		used++
		if strings.Contains(content, kw) {
			matched++
		}
	}
	if used == 0 {
		return 0
	}
	return float64(matched) / float64(used)
}

// Cosine returns the cosine similarity of a and b, 0 for zero vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func limit(hits []types.ScoredMaterial, k int) []types.ScoredMaterial {
	if k > 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}
