package vocab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/article-agent/internal/types"
)

// Source supplies the global blocked-phrase list at execution time.
type Source interface {
	Blocked(ctx context.Context) (List, error)
}

// Static is a fixed list loaded once at startup.
type Static List

// Blocked implements Source.
func (s Static) Blocked(context.Context) (List, error) {
	return List(s), nil
}

// AssetGetter reads brand assets. It returns (nil, nil) for a missing key.
type AssetGetter interface {
	GetBrandAsset(ctx context.Context, key string) (*types.BrandAsset, error)
}

// AssetSource reads the list from the blocking_words brand asset so editors can
// change it without a restart. It falls back to Fallback when the asset is
// missing or unparsable.
type AssetSource struct {
	Assets   AssetGetter
	Key      string
	Fallback List
	Logger   *slog.Logger
}

// Blocked implements Source.
func (s *AssetSource) Blocked(ctx context.Context) (List, error) {
	key := s.Key
	if key == "" {
		key = types.AssetBlockingWords
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	asset, err := s.Assets.GetBrandAsset(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load brand asset %s: %w", key, err)
	}
	if asset == nil {
		return s.Fallback, nil
	}

	list, err := Parse(asset.ContentType, []byte(asset.Content))
	if err != nil {
		logger.Warn("blocked phrase asset unparsable, using fallback", "asset_key", key, "error", err)
		return s.Fallback, nil
	}
	if len(list) == 0 {
		return s.Fallback, nil
	}
	return list, nil
}
