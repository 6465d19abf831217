package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/article-agent/internal/types"
)

const channelColumns = `id, slug, name, description, target_audience, brand_personality, role,
	writing_style, preferred_tone, forbidden_tone, must_do, must_not_do, blocked_phrases,
	material_tags, default_style, is_active, created_at, updated_at`

// CreateChannel inserts a new channel. The slug must be unique.
func (db *DB) CreateChannel(ctx context.Context, ch *types.Channel) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	style, err := encodeJSON(ch.DefaultStyle)
	if err != nil {
		return err
	}
	err = db.pool.QueryRow(ctx, `
		INSERT INTO channels (id, slug, name, description, target_audience, brand_personality, role,
			writing_style, preferred_tone, forbidden_tone, must_do, must_not_do, blocked_phrases,
			material_tags, default_style, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`,
		ch.ID, ch.Slug, ch.Name, ch.Description, ch.TargetAudience, ch.BrandPersonality, ch.Role,
		ch.WritingStyle, ch.PreferredTone, ch.ForbiddenTone, ch.MustDo, ch.MustNotDo, ch.BlockedPhrases,
		ch.MaterialTags, style, ch.IsActive,
	).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.DuplicateRecordError{Kind: "channel", Key: ch.Slug}
		}
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

// GetChannel retrieves a channel by ID. Returns nil when not found.
func (db *DB) GetChannel(ctx context.Context, id uuid.UUID) (*types.Channel, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	ch, err := scanChannel(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// GetChannelBySlug retrieves a channel by slug. Returns nil when not found.
func (db *DB) GetChannelBySlug(ctx context.Context, slug string) (*types.Channel, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE slug = $1`, slug)
	ch, err := scanChannel(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel by slug: %w", err)
	}
	return ch, nil
}

// ListChannels returns channels ordered by slug.
func (db *DB) ListChannels(ctx context.Context, includeInactive bool) ([]types.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY slug`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []types.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// UpdateChannel replaces the mutable fields of a channel.
func (db *DB) UpdateChannel(ctx context.Context, ch *types.Channel) error {
	style, err := encodeJSON(ch.DefaultStyle)
	if err != nil {
		return err
	}
	err = db.pool.QueryRow(ctx, `
		UPDATE channels SET slug = $2, name = $3, description = $4, target_audience = $5,
			brand_personality = $6, role = $7, writing_style = $8, preferred_tone = $9,
			forbidden_tone = $10, must_do = $11, must_not_do = $12, blocked_phrases = $13,
			material_tags = $14, default_style = $15, is_active = $16, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		ch.ID, ch.Slug, ch.Name, ch.Description, ch.TargetAudience, ch.BrandPersonality, ch.Role,
		ch.WritingStyle, ch.PreferredTone, ch.ForbiddenTone, ch.MustDo, ch.MustNotDo, ch.BlockedPhrases,
		ch.MaterialTags, style, ch.IsActive,
	).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		switch {
		case isNoRows(err):
			return &types.RecordNotFoundError{Kind: "channel", Key: ch.ID.String()}
		case isUniqueViolation(err):
			return &types.DuplicateRecordError{Kind: "channel", Key: ch.Slug}
		}
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return nil
}

// DeactivateChannel soft-deletes a channel. Existing tasks keep working.
func (db *DB) DeactivateChannel(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `UPDATE channels SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &types.RecordNotFoundError{Kind: "channel", Key: id.String()}
	}
	return nil
}

func scanChannel(row pgx.Row) (*types.Channel, error) {
	var ch types.Channel
	var style []byte
	err := row.Scan(
		&ch.ID, &ch.Slug, &ch.Name, &ch.Description, &ch.TargetAudience, &ch.BrandPersonality, &ch.Role,
		&ch.WritingStyle, &ch.PreferredTone, &ch.ForbiddenTone, &ch.MustDo, &ch.MustNotDo, &ch.BlockedPhrases,
		&ch.MaterialTags, &style, &ch.IsActive, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(style, &ch.DefaultStyle); err != nil {
		return nil, fmt.Errorf("failed to decode default style: %w", err)
	}
	return &ch, nil
}

// encodeJSON marshals v for a nullable JSONB column. A nil pointer stores NULL.
func encodeJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	return data, nil
}

func decodeJSON[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
