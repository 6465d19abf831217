package db

import (
	"context"
	"fmt"

	"github.com/jonathan/article-agent/internal/types"
)

// GetBrandAsset retrieves an asset by key. Returns nil when not found.
func (db *DB) GetBrandAsset(ctx context.Context, key string) (*types.BrandAsset, error) {
	var a types.BrandAsset
	err := db.pool.QueryRow(ctx, `
		SELECT asset_key, content, content_type, description, created_at, updated_at
		FROM brand_assets WHERE asset_key = $1`, key,
	).Scan(&a.Key, &a.Content, &a.ContentType, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get brand asset: %w", err)
	}
	return &a, nil
}

// PutBrandAsset creates or replaces an asset.
func (db *DB) PutBrandAsset(ctx context.Context, a *types.BrandAsset) error {
	if a.ContentType == "" {
		a.ContentType = "markdown"
	}
	err := db.pool.QueryRow(ctx, `
		INSERT INTO brand_assets (asset_key, content, content_type, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_key) DO UPDATE SET
			content = EXCLUDED.content,
			content_type = EXCLUDED.content_type,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING created_at, updated_at`,
		a.Key, a.Content, a.ContentType, a.Description,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put brand asset: %w", err)
	}
	return nil
}

// ListBrandAssets returns all assets ordered by key.
func (db *DB) ListBrandAssets(ctx context.Context) ([]types.BrandAsset, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT asset_key, content, content_type, description, created_at, updated_at
		FROM brand_assets ORDER BY asset_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list brand assets: %w", err)
	}
	defer rows.Close()

	assets := []types.BrandAsset{}
	for rows.Next() {
		var a types.BrandAsset
		if err := rows.Scan(&a.Key, &a.Content, &a.ContentType, &a.Description, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
