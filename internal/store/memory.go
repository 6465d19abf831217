// Package store provides task and catalog stores that do not need Postgres:
// an in-process memory store and an embedded SQLite task store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/retrieval"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

var _ workflow.TaskStore = (*Memory)(nil)
var _ workflow.ChannelProvider = (*Memory)(nil)

// Memory keeps tasks, logs and the channel catalog in process memory.
// Every value crossing its boundary is copied.
type Memory struct {
	mu       sync.RWMutex
	tasks    map[uuid.UUID]*types.WritingTask
	logs     map[uuid.UUID][]types.LogEntry
	channels map[uuid.UUID]types.Channel
	samples  map[uuid.UUID]types.StyleSample
	assets   map[string]types.BrandAsset
	editors  map[uuid.UUID]types.Editor
	index    *retrieval.MemoryIndex
	now      func() time.Time
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:    make(map[uuid.UUID]*types.WritingTask),
		logs:     make(map[uuid.UUID][]types.LogEntry),
		channels: make(map[uuid.UUID]types.Channel),
		samples:  make(map[uuid.UUID]types.StyleSample),
		assets:   make(map[string]types.BrandAsset),
		editors:  make(map[uuid.UUID]types.Editor),
		index:    retrieval.NewMemoryIndex(),
		now:      time.Now,
	}
}

// SetClock replaces the store clock. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Create implements workflow.TaskStore.
func (m *Memory) Create(_ context.Context, task *types.WritingTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; exists {
		return &types.DuplicateRecordError{Kind: "task", Key: task.ID.String()}
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

// Get implements workflow.TaskStore.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*types.WritingTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

// Update implements workflow.TaskStore.
func (m *Memory) Update(_ context.Context, id uuid.UUID, expectedVersion int64, mut types.Mutation) (*types.WritingTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, &workflow.NotFoundError{TaskID: id}
	}
	if t.Version != expectedVersion {
		return nil, &workflow.VersionConflictError{TaskID: id, Expected: expectedVersion, Actual: t.Version}
	}

	now := m.now()
	next := t.Clone()
	types.Apply(next, mut, now)
	m.tasks[id] = next
	m.appendLocked(id, now, mut.Notes())
	return next.Clone(), nil
}

// List implements workflow.TaskStore. Tasks are ordered newest first.
func (m *Memory) List(_ context.Context, filter types.TaskFilter) ([]types.WritingTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.WritingTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		if filter.ChannelID != nil && t.ChannelID != *filter.ChannelID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return page(out, filter.Offset, filter.Limit), nil
}

// Delete implements workflow.TaskStore.
func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return &workflow.NotFoundError{TaskID: id}
	}
	delete(m.tasks, id)
	delete(m.logs, id)
	return nil
}

// AppendLog implements workflow.TaskStore.
func (m *Memory) AppendLog(_ context.Context, id uuid.UUID, notes ...types.LogNote) ([]types.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return nil, &workflow.NotFoundError{TaskID: id}
	}
	return m.appendLocked(id, m.now(), notes), nil
}

// ListLogs implements workflow.TaskStore.
func (m *Memory) ListLogs(_ context.Context, id uuid.UUID, afterSeq int64) ([]types.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.logs[id]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Seq > afterSeq })
	return append([]types.LogEntry(nil), entries[i:]...), nil
}

func (m *Memory) appendLocked(id uuid.UUID, now time.Time, notes []types.LogNote) []types.LogEntry {
	if len(notes) == 0 {
		return nil
	}
	seq := int64(len(m.logs[id]))
	out := make([]types.LogEntry, 0, len(notes))
	for _, n := range notes {
		seq++
		e := n.Entry(id, now)
		e.Seq = seq
		out = append(out, e)
	}
	m.logs[id] = append(m.logs[id], out...)
	return out
}

// CreateChannel stores a new channel, assigning an ID when unset.
func (m *Memory) CreateChannel(_ context.Context, ch *types.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.channels {
		if existing.Slug == ch.Slug {
			return &types.DuplicateRecordError{Kind: "channel", Key: ch.Slug}
		}
	}
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	now := m.now()
	ch.CreatedAt, ch.UpdatedAt = now, now
	m.channels[ch.ID] = cloneChannel(*ch)
	return nil
}

// GetChannel implements workflow.ChannelProvider.
func (m *Memory) GetChannel(_ context.Context, id uuid.UUID) (*types.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, nil
	}
	c := cloneChannel(ch)
	return &c, nil
}

// GetChannelBySlug returns the channel with slug, or nil.
func (m *Memory) GetChannelBySlug(_ context.Context, slug string) (*types.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.channels {
		if ch.Slug == slug {
			c := cloneChannel(ch)
			return &c, nil
		}
	}
	return nil, nil
}

// ListChannels returns channels ordered by slug.
func (m *Memory) ListChannels(_ context.Context, includeInactive bool) ([]types.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.IsActive || includeInactive {
			out = append(out, cloneChannel(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// UpdateChannel replaces a stored channel.
func (m *Memory) UpdateChannel(_ context.Context, ch *types.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.channels[ch.ID]
	if !ok {
		return &types.RecordNotFoundError{Kind: "channel", Key: ch.ID.String()}
	}
	ch.CreatedAt = existing.CreatedAt
	ch.UpdatedAt = m.now()
	m.channels[ch.ID] = cloneChannel(*ch)
	return nil
}

// DeactivateChannel soft-deletes a channel.
func (m *Memory) DeactivateChannel(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return &types.RecordNotFoundError{Kind: "channel", Key: id.String()}
	}
	ch.IsActive = false
	ch.UpdatedAt = m.now()
	m.channels[id] = ch
	return nil
}

// CreateSample stores a new style sample.
func (m *Memory) CreateSample(_ context.Context, s *types.StyleSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := m.now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.samples[s.ID] = cloneSample(*s)
	return nil
}

// GetSample returns a sample, or nil when unknown.
func (m *Memory) GetSample(_ context.Context, id uuid.UUID) (*types.StyleSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.samples[id]
	if !ok {
		return nil, nil
	}
	c := cloneSample(s)
	return &c, nil
}

// ListSamples returns a channel's samples, newest first.
func (m *Memory) ListSamples(_ context.Context, channelID uuid.UUID) ([]types.StyleSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.StyleSample
	for _, s := range m.samples {
		if s.ChannelID == channelID {
			out = append(out, cloneSample(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateSample replaces a stored sample.
func (m *Memory) UpdateSample(_ context.Context, s *types.StyleSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.samples[s.ID]
	if !ok {
		return &types.RecordNotFoundError{Kind: "style sample", Key: s.ID.String()}
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = m.now()
	m.samples[s.ID] = cloneSample(*s)
	return nil
}

// DeleteSample removes a sample.
func (m *Memory) DeleteSample(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.samples[id]; !ok {
		return &types.RecordNotFoundError{Kind: "style sample", Key: id.String()}
	}
	delete(m.samples, id)
	return nil
}

// CreateMaterial stores a new material.
func (m *Memory) CreateMaterial(_ context.Context, mat *types.Material) error {
	if mat.ID == uuid.Nil {
		mat.ID = uuid.New()
	}
	m.mu.RLock()
	now := m.now()
	m.mu.RUnlock()
	mat.CreatedAt, mat.UpdatedAt = now, now
	m.index.Add(cloneMaterial(*mat))
	return nil
}

// GetMaterial returns a material, or nil when unknown.
func (m *Memory) GetMaterial(_ context.Context, id uuid.UUID) (*types.Material, error) {
	for _, mat := range m.index.Materials() {
		if mat.ID == id {
			c := cloneMaterial(mat)
			return &c, nil
		}
	}
	return nil, nil
}

// ListMaterials returns materials matching filter, newest first.
func (m *Memory) ListMaterials(_ context.Context, filter types.MaterialFilter) ([]types.Material, error) {
	var out []types.Material
	for _, mat := range m.index.Materials() {
		switch {
		case filter.GlobalOnly && mat.ChannelID != nil:
			continue
		case filter.ChannelID != nil && (mat.ChannelID == nil || *mat.ChannelID != *filter.ChannelID):
			continue
		case filter.Type != "" && mat.MaterialType != filter.Type:
			continue
		}
		out = append(out, cloneMaterial(mat))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Offset, filter.Limit), nil
}

// DeleteMaterial removes a material.
func (m *Memory) DeleteMaterial(_ context.Context, id uuid.UUID) error {
	if !m.index.Remove(id) {
		return &types.RecordNotFoundError{Kind: "material", Key: id.String()}
	}
	return nil
}

// SetMaterialEmbedding stores the embedding of a material.
func (m *Memory) SetMaterialEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	mat, err := m.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	if mat == nil {
		return &types.RecordNotFoundError{Kind: "material", Key: id.String()}
	}
	mat.Embedding = append([]float32(nil), vector...)
	m.mu.RLock()
	mat.UpdatedAt = m.now()
	m.mu.RUnlock()
	m.index.Add(*mat)
	return nil
}

// ListUnembeddedMaterials returns up to limit materials without an embedding.
func (m *Memory) ListUnembeddedMaterials(_ context.Context, limit int) ([]types.Material, error) {
	var out []types.Material
	for _, mat := range m.index.Materials() {
		if len(mat.Embedding) == 0 {
			out = append(out, cloneMaterial(mat))
		}
	}
	return page(out, 0, limit), nil
}

// NearestNeighbors implements retrieval.VectorSearcher.
func (m *Memory) NearestNeighbors(ctx context.Context, channelID uuid.UUID, vector []float32, k int) ([]types.ScoredMaterial, error) {
	return m.index.NearestNeighbors(ctx, channelID, vector, k)
}

// SearchKeywords implements retrieval.KeywordSearcher.
func (m *Memory) SearchKeywords(ctx context.Context, channelID uuid.UUID, keywords []string, k int) ([]types.ScoredMaterial, error) {
	return m.index.SearchKeywords(ctx, channelID, keywords, k)
}

// GetBrandAsset returns an asset by key, or nil.
func (m *Memory) GetBrandAsset(_ context.Context, key string) (*types.BrandAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[key]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// PutBrandAsset creates or replaces an asset.
func (m *Memory) PutBrandAsset(_ context.Context, a *types.BrandAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if existing, ok := m.assets[a.Key]; ok {
		a.CreatedAt = existing.CreatedAt
	} else {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	m.assets[a.Key] = *a
	return nil
}

// ListBrandAssets returns all assets ordered by key.
func (m *Memory) ListBrandAssets(_ context.Context) ([]types.BrandAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.BrandAsset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// CreateEditor stores a new editor account. Emails are unique ignoring case.
func (m *Memory) CreateEditor(_ context.Context, e *types.Editor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.editors {
		if strings.EqualFold(existing.Email, e.Email) {
			return &types.DuplicateRecordError{Kind: "editor", Key: e.Email}
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := m.now()
	e.CreatedAt, e.UpdatedAt = now, now
	m.editors[e.ID] = *e
	return nil
}

// GetEditor returns an editor by ID, or nil.
func (m *Memory) GetEditor(_ context.Context, id uuid.UUID) (*types.Editor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.editors[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// GetEditorByEmail returns an editor by email, or nil.
func (m *Memory) GetEditorByEmail(_ context.Context, email string) (*types.Editor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.editors {
		if strings.EqualFold(e.Email, email) {
			return &e, nil
		}
	}
	return nil, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneChannel(ch types.Channel) types.Channel {
	ch.WritingStyle = types.CloneStrings(ch.WritingStyle)
	ch.PreferredTone = types.CloneStrings(ch.PreferredTone)
	ch.ForbiddenTone = types.CloneStrings(ch.ForbiddenTone)
	ch.MustDo = types.CloneStrings(ch.MustDo)
	ch.MustNotDo = types.CloneStrings(ch.MustNotDo)
	ch.BlockedPhrases = types.CloneStrings(ch.BlockedPhrases)
	ch.MaterialTags = types.CloneStrings(ch.MaterialTags)
	ch.DefaultStyle = ch.DefaultStyle.Clone()
	return ch
}

func cloneSample(s types.StyleSample) types.StyleSample {
	s.CustomTags = types.CloneStrings(s.CustomTags)
	s.AISuggestedTags = types.CloneStrings(s.AISuggestedTags)
	s.Profile = s.Profile.Clone()
	return s
}

func cloneMaterial(mat types.Material) types.Material {
	mat.Tags = types.CloneStrings(mat.Tags)
	if mat.ChannelID != nil {
		id := *mat.ChannelID
		mat.ChannelID = &id
	}
	mat.Embedding = append([]float32(nil), mat.Embedding...)
	return mat
}
