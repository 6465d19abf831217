package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/article-agent/internal/types"
)

const sampleColumns = `id, channel_id, title, content, source, custom_tags, ai_suggested_tags,
	style_profile, is_analyzed, word_count, created_at, updated_at`

// CreateSample inserts a style sample for its channel.
func (db *DB) CreateSample(ctx context.Context, s *types.StyleSample) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	profile, err := encodeJSON(s.Profile)
	if err != nil {
		return err
	}
	err = db.pool.QueryRow(ctx, `
		INSERT INTO style_samples (id, channel_id, title, content, source, custom_tags,
			ai_suggested_tags, style_profile, is_analyzed, word_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		s.ID, s.ChannelID, s.Title, s.Content, s.Source, s.CustomTags,
		s.AISuggestedTags, profile, s.IsAnalyzed, s.WordCount,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create style sample: %w", err)
	}
	return nil
}

// GetSample retrieves a sample by ID. Returns nil when not found.
func (db *DB) GetSample(ctx context.Context, id uuid.UUID) (*types.StyleSample, error) {
	s, err := scanSample(db.pool.QueryRow(ctx, `SELECT `+sampleColumns+` FROM style_samples WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get style sample: %w", err)
	}
	return s, nil
}

// ListSamples returns a channel's samples, newest first.
func (db *DB) ListSamples(ctx context.Context, channelID uuid.UUID) ([]types.StyleSample, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+sampleColumns+` FROM style_samples WHERE channel_id = $1 ORDER BY created_at DESC, id`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list style samples: %w", err)
	}
	defer rows.Close()

	var samples []types.StyleSample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan style sample: %w", err)
		}
		samples = append(samples, *s)
	}
	return samples, rows.Err()
}

// UpdateSample replaces the mutable fields of a sample, including its
// analysis result.
func (db *DB) UpdateSample(ctx context.Context, s *types.StyleSample) error {
	profile, err := encodeJSON(s.Profile)
	if err != nil {
		return err
	}
	err = db.pool.QueryRow(ctx, `
		UPDATE style_samples SET title = $2, content = $3, source = $4, custom_tags = $5,
			ai_suggested_tags = $6, style_profile = $7, is_analyzed = $8, word_count = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.Title, s.Content, s.Source, s.CustomTags,
		s.AISuggestedTags, profile, s.IsAnalyzed, s.WordCount,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return &types.RecordNotFoundError{Kind: "style sample", Key: s.ID.String()}
		}
		return fmt.Errorf("failed to update style sample: %w", err)
	}
	return nil
}

// DeleteSample removes a sample.
func (db *DB) DeleteSample(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM style_samples WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete style sample: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.RecordNotFoundError{Kind: "style sample", Key: id.String()}
	}
	return nil
}

func scanSample(row pgx.Row) (*types.StyleSample, error) {
	var s types.StyleSample
	var profile []byte
	err := row.Scan(
		&s.ID, &s.ChannelID, &s.Title, &s.Content, &s.Source, &s.CustomTags, &s.AISuggestedTags,
		&profile, &s.IsAnalyzed, &s.WordCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(profile, &s.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode style profile: %w", err)
	}
	return &s, nil
}
