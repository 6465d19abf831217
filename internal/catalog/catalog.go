// Package catalog manages the editorial catalog around tasks: channels,
// style samples, materials, brand assets and editor accounts.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/fetch"
	"github.com/jonathan/article-agent/internal/retrieval"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
)

// ChannelStore persists channels. Lookups return (nil, nil) when missing.
type ChannelStore interface {
	CreateChannel(ctx context.Context, ch *types.Channel) error
	GetChannel(ctx context.Context, id uuid.UUID) (*types.Channel, error)
	GetChannelBySlug(ctx context.Context, slug string) (*types.Channel, error)
	ListChannels(ctx context.Context, includeInactive bool) ([]types.Channel, error)
	UpdateChannel(ctx context.Context, ch *types.Channel) error
	DeactivateChannel(ctx context.Context, id uuid.UUID) error
}

// SampleStore persists style samples.
type SampleStore interface {
	CreateSample(ctx context.Context, s *types.StyleSample) error
	GetSample(ctx context.Context, id uuid.UUID) (*types.StyleSample, error)
	ListSamples(ctx context.Context, channelID uuid.UUID) ([]types.StyleSample, error)
	UpdateSample(ctx context.Context, s *types.StyleSample) error
	DeleteSample(ctx context.Context, id uuid.UUID) error
}

// MaterialStore persists materials and their embeddings.
type MaterialStore interface {
	CreateMaterial(ctx context.Context, m *types.Material) error
	GetMaterial(ctx context.Context, id uuid.UUID) (*types.Material, error)
	ListMaterials(ctx context.Context, filter types.MaterialFilter) ([]types.Material, error)
	DeleteMaterial(ctx context.Context, id uuid.UUID) error
	SetMaterialEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
	ListUnembeddedMaterials(ctx context.Context, limit int) ([]types.Material, error)
}

// AssetStore persists brand assets.
type AssetStore interface {
	GetBrandAsset(ctx context.Context, key string) (*types.BrandAsset, error)
	PutBrandAsset(ctx context.Context, a *types.BrandAsset) error
	ListBrandAssets(ctx context.Context) ([]types.BrandAsset, error)
}

// EditorStore persists editor accounts.
type EditorStore interface {
	CreateEditor(ctx context.Context, e *types.Editor) error
	GetEditor(ctx context.Context, id uuid.UUID) (*types.Editor, error)
	GetEditorByEmail(ctx context.Context, email string) (*types.Editor, error)
}

// Store is everything the catalog persists. Both the Postgres database and
// the memory store satisfy it.
type Store interface {
	ChannelStore
	SampleStore
	MaterialStore
	AssetStore
	EditorStore
}

// ArticleExtractor fetches readable article text from a URL.
type ArticleExtractor interface {
	Extract(ctx context.Context, url string) (*fetch.Article, error)
}

// InvalidInputError reports a request that failed validation.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid input: %s - %s", e.Field, e.Message)
}

// Options wires a Service.
type Options struct {
	Store     Store
	Analyzer  *style.Analyzer
	Extractor ArticleExtractor
	// Embedder is optional; without it materials are stored unembedded and
	// retrieval falls back to keywords.
	Embedder retrieval.Embedder
	Logger   *slog.Logger
}

// Service implements catalog operations on top of a Store.
type Service struct {
	store     Store
	analyzer  *style.Analyzer
	extractor ArticleExtractor
	embedder  retrieval.Embedder
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService creates a catalog service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     opts.Store,
		analyzer:  opts.Analyzer,
		extractor: opts.Extractor,
		embedder:  opts.Embedder,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &InvalidInputError{Field: verrs[0].Field(), Message: verrs[0].Tag()}
		}
		return &InvalidInputError{Message: err.Error()}
	}
	return nil
}

// CreateChannel validates and stores a new active channel.
func (s *Service) CreateChannel(ctx context.Context, ch *types.Channel) error {
	ch.Slug = strings.TrimSpace(strings.ToLower(ch.Slug))
	if err := s.check(ch); err != nil {
		return err
	}
	ch.IsActive = true
	if err := s.store.CreateChannel(ctx, ch); err != nil {
		return err
	}
	s.logger.Info("channel created", "channel_id", ch.ID, "slug", ch.Slug)
	return nil
}

// UpdateChannel validates and replaces a channel.
func (s *Service) UpdateChannel(ctx context.Context, ch *types.Channel) error {
	if err := s.check(ch); err != nil {
		return err
	}
	return s.store.UpdateChannel(ctx, ch)
}

// ResolveChannel accepts a channel ID or slug.
func (s *Service) ResolveChannel(ctx context.Context, ref string) (*types.Channel, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.store.GetChannel(ctx, id)
	}
	return s.store.GetChannelBySlug(ctx, strings.ToLower(strings.TrimSpace(ref)))
}

// SeedChannels creates the channels that do not exist yet, matched by slug.
// It returns how many were created.
func (s *Service) SeedChannels(ctx context.Context, channels []*types.Channel) (int, error) {
	created := 0
	for _, ch := range channels {
		existing, err := s.store.GetChannelBySlug(ctx, ch.Slug)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		if err := s.CreateChannel(ctx, ch); err != nil {
			return created, fmt.Errorf("failed to seed channel %s: %w", ch.Slug, err)
		}
		created++
	}
	return created, nil
}

// SeedAssets writes brand assets, replacing any with the same key.
func (s *Service) SeedAssets(ctx context.Context, assets []*types.BrandAsset) error {
	for _, a := range assets {
		if err := s.check(a); err != nil {
			return err
		}
		if err := s.store.PutBrandAsset(ctx, a); err != nil {
			return fmt.Errorf("failed to seed asset %s: %w", a.Key, err)
		}
	}
	return nil
}

// CreateSample stores a sample for an existing channel.
func (s *Service) CreateSample(ctx context.Context, sample *types.StyleSample) error {
	if err := s.check(sample); err != nil {
		return err
	}
	ch, err := s.store.GetChannel(ctx, sample.ChannelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return &types.RecordNotFoundError{Kind: "channel", Key: sample.ChannelID.String()}
	}
	sample.WordCount = style.WordCount(sample.Content)
	sample.IsAnalyzed = !sample.Profile.IsEmpty()
	return s.store.CreateSample(ctx, sample)
}

// UpdateSample validates and replaces a sample. Content edits recount words;
// the analysis state follows the profile.
func (s *Service) UpdateSample(ctx context.Context, sample *types.StyleSample) error {
	if err := s.check(sample); err != nil {
		return err
	}
	sample.WordCount = style.WordCount(sample.Content)
	sample.IsAnalyzed = !sample.Profile.IsEmpty()
	return s.store.UpdateSample(ctx, sample)
}

// ImportSample downloads an article and stores it as a sample of channelID.
func (s *Service) ImportSample(ctx context.Context, channelID uuid.UUID, url string, tags []string) (*types.StyleSample, error) {
	if s.extractor == nil {
		return nil, errors.New("sample import is not configured")
	}
	article, err := s.extractor.Extract(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", url, err)
	}
	title := article.Title
	if title == "" {
		title = url
	}
	sample := &types.StyleSample{
		ChannelID:  channelID,
		Title:      truncateRunes(title, 200),
		Content:    article.Text,
		Source:     url,
		CustomTags: tags,
	}
	if err := s.CreateSample(ctx, sample); err != nil {
		return nil, err
	}
	s.logger.Info("style sample imported",
		"sample_id", sample.ID, "url", url, "platform", article.Platform,
		"method", article.Method, "words", sample.WordCount)
	return sample, nil
}

// AnalyzeSample runs style analysis on a sample and stores the profile.
// Already analyzed samples are only re-analyzed when force is set.
func (s *Service) AnalyzeSample(ctx context.Context, id uuid.UUID, force bool) (*types.StyleSample, error) {
	if s.analyzer == nil {
		return nil, errors.New("style analysis is not configured")
	}
	sample, err := s.store.GetSample(ctx, id)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, &types.RecordNotFoundError{Kind: "style sample", Key: id.String()}
	}
	analyzed, called, err := s.analyzer.Analyze(ctx, sample, force)
	if err != nil {
		return nil, err
	}
	if !called {
		return analyzed, nil
	}
	if err := s.store.UpdateSample(ctx, analyzed); err != nil {
		return nil, err
	}
	return analyzed, nil
}

// AddMaterial validates, embeds when possible, and stores a material.
// An embedding failure is logged and the material is stored without one.
func (s *Service) AddMaterial(ctx context.Context, m *types.Material) error {
	m.Content = strings.TrimSpace(m.Content)
	if m.MaterialType == "" {
		m.MaterialType = types.MaterialOther
	}
	if m.QualityWeight == 0 {
		m.QualityWeight = 3
	}
	if err := s.check(m); err != nil {
		return err
	}
	if m.ChannelID != nil {
		ch, err := s.store.GetChannel(ctx, *m.ChannelID)
		if err != nil {
			return err
		}
		if ch == nil {
			return &types.RecordNotFoundError{Kind: "channel", Key: m.ChannelID.String()}
		}
	}
	if s.embedder != nil && len(m.Embedding) == 0 {
		vec, err := s.embedder.Embed(ctx, m.Content)
		if err != nil {
			s.logger.Warn("material embedding failed, storing without vector", "error", err)
		} else {
			m.Embedding = vec
		}
	}
	return s.store.CreateMaterial(ctx, m)
}

// EmbedPending backfills embeddings for up to limit unembedded materials
// and returns how many were embedded.
func (s *Service) EmbedPending(ctx context.Context, limit int) (int, error) {
	if s.embedder == nil {
		return 0, errors.New("no embedder configured")
	}
	pending, err := s.store.ListUnembeddedMaterials(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	texts := make([]string, len(pending))
	for i, m := range pending {
		texts[i] = m.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed materials: %w", err)
	}
	if len(vectors) != len(pending) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d materials", len(vectors), len(pending))
	}
	for i, m := range pending {
		if err := s.store.SetMaterialEmbedding(ctx, m.ID, vectors[i]); err != nil {
			return i, err
		}
	}
	s.logger.Info("materials embedded", "count", len(pending))
	return len(pending), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
