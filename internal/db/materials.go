package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/article-agent/internal/retrieval"
	"github.com/jonathan/article-agent/internal/types"
)

var (
	_ retrieval.VectorSearcher  = (*DB)(nil)
	_ retrieval.KeywordSearcher = (*DB)(nil)
)

const materialColumns = `id, channel_id, content, material_type, tags, source, quality_weight,
	COALESCE(embedding::text, ''), created_at, updated_at`

// keywordCandidates bounds the rows scored in Go by SearchKeywords.
const keywordCandidates = 200

// CreateMaterial inserts a material. A nil ChannelID makes it global.
func (db *DB) CreateMaterial(ctx context.Context, m *types.Material) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.MaterialType == "" {
		m.MaterialType = types.MaterialOther
	}
	if m.QualityWeight == 0 {
		m.QualityWeight = 3
	}
	var embedding *string
	if len(m.Embedding) > 0 {
		lit := encodeVector(m.Embedding)
		embedding = &lit
	}
	err := db.pool.QueryRow(ctx, `
		INSERT INTO materials (id, channel_id, content, material_type, tags, source, quality_weight, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
		RETURNING created_at, updated_at`,
		m.ID, m.ChannelID, m.Content, m.MaterialType, m.Tags, m.Source, m.QualityWeight, embedding,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

// GetMaterial retrieves a material by ID. Returns nil when not found.
func (db *DB) GetMaterial(ctx context.Context, id uuid.UUID) (*types.Material, error) {
	m, err := scanMaterial(db.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	return m, nil
}

// ListMaterials returns materials matching filter, newest first.
func (db *DB) ListMaterials(ctx context.Context, filter types.MaterialFilter) ([]types.Material, error) {
	var where []string
	var args []any
	switch {
	case filter.GlobalOnly:
		where = append(where, "channel_id IS NULL")
	case filter.ChannelID != nil:
		args = append(args, *filter.ChannelID)
		where = append(where, fmt.Sprintf("channel_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("material_type = $%d", len(args)))
	}
	query := `SELECT ` + materialColumns + ` FROM materials`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return db.queryMaterials(ctx, "list materials", query, args...)
}

// DeleteMaterial removes a material.
func (db *DB) DeleteMaterial(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.RecordNotFoundError{Kind: "material", Key: id.String()}
	}
	return nil
}

// SetMaterialEmbedding stores the embedding of a material.
func (db *DB) SetMaterialEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE materials SET embedding = $2::vector, updated_at = NOW() WHERE id = $1`,
		id, encodeVector(vector),
	)
	if err != nil {
		return fmt.Errorf("failed to set material embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.RecordNotFoundError{Kind: "material", Key: id.String()}
	}
	return nil
}

// ListUnembeddedMaterials returns up to limit materials without an
// embedding, oldest first.
func (db *DB) ListUnembeddedMaterials(ctx context.Context, limit int) ([]types.Material, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.queryMaterials(ctx, "list unembedded materials",
		`SELECT `+materialColumns+` FROM materials WHERE embedding IS NULL ORDER BY created_at, id LIMIT $1`,
		limit,
	)
}

// NearestNeighbors implements retrieval.VectorSearcher using cosine
// distance. Only materials of the channel or global ones are considered,
// and only those whose embedding has the query's dimension.
func (db *DB) NearestNeighbors(ctx context.Context, channelID uuid.UUID, vector []float32, k int) ([]types.ScoredMaterial, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	rows, err := db.pool.Query(ctx, `
		SELECT `+materialColumns+`, 1 - (embedding <=> $2::vector) AS similarity
		FROM materials
		WHERE (channel_id = $1 OR channel_id IS NULL)
		  AND embedding IS NOT NULL
		  AND vector_dims(embedding) = $3
		ORDER BY embedding <=> $2::vector
		LIMIT $4`,
		channelID, encodeVector(vector), len(vector), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search materials by vector: %w", err)
	}
	defer rows.Close()

	var hits []types.ScoredMaterial
	for rows.Next() {
		var hit types.ScoredMaterial
		m, err := scanMaterialWith(rows, &hit.Similarity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		hit.Material = *m
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// SearchKeywords implements retrieval.KeywordSearcher. Postgres narrows the
// candidates with ILIKE; scoring matches the in-memory index.
func (db *DB) SearchKeywords(ctx context.Context, channelID uuid.UUID, keywords []string, k int) ([]types.ScoredMaterial, error) {
	var patterns []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			patterns = append(patterns, "%"+escapeLike(kw)+"%")
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	materials, err := db.queryMaterials(ctx, "search materials by keyword", `
		SELECT `+materialColumns+`
		FROM materials
		WHERE (channel_id = $1 OR channel_id IS NULL)
		  AND content ILIKE ANY($2)
		ORDER BY quality_weight DESC, created_at DESC
		LIMIT $3`,
		channelID, patterns, keywordCandidates,
	)
	if err != nil {
		return nil, err
	}

	var hits []types.ScoredMaterial
	for _, m := range materials {
		if score := retrieval.KeywordScore(m.Content, keywords); score > 0 {
			hits = append(hits, types.ScoredMaterial{Material: m, Similarity: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].QualityWeight > hits[j].QualityWeight
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (db *DB) queryMaterials(ctx context.Context, op, query string, args ...any) ([]types.Material, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	materials := []types.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return materials, nil
}

func scanMaterial(row pgx.Row) (*types.Material, error) {
	return scanMaterialWith(row)
}

// scanMaterialWith scans the material columns followed by extra destinations.
func scanMaterialWith(row pgx.Row, extra ...any) (*types.Material, error) {
	var m types.Material
	var embedding string
	dest := []any{
		&m.ID, &m.ChannelID, &m.Content, &m.MaterialType, &m.Tags, &m.Source, &m.QualityWeight,
		&embedding, &m.CreatedAt, &m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	vec, err := decodeVector(embedding)
	if err != nil {
		return nil, err
	}
	m.Embedding = vec
	return &m, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
