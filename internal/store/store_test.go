package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLite(db)
	require.NoError(t, err)
	return s
}

var taskStores = map[string]func(t *testing.T) workflow.TaskStore{
	"memory": func(*testing.T) workflow.TaskStore { return NewMemory() },
	"sqlite": func(t *testing.T) workflow.TaskStore { return newTestSQLite(t) },
}

func newTask(channel uuid.UUID, created time.Time) *types.WritingTask {
	return types.NewWritingTask(channel, "title", "brief", created)
}

func TestTaskStore_CreateGet(t *testing.T) {
	for name, open := range taskStores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			task := newTask(uuid.New(), time.Now())

			require.NoError(t, s.Create(ctx, task))

			got, err := s.Get(ctx, task.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, task.ID, got.ID)
			assert.Equal(t, types.StatusProcessing, got.Status)
			assert.Equal(t, int64(1), got.Version)

			missing, err := s.Get(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestTaskStore_UpdateVersioning(t *testing.T) {
	for name, open := range taskStores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			task := newTask(uuid.New(), time.Now())
			require.NoError(t, s.Create(ctx, task))

			m := types.StepCompleted{
				Output: types.StepOutput{Step: 1, Output: "analysis"},
				Log:    []types.LogNote{{Step: 1, Level: types.LogInfo, Message: "done"}},
			}
			updated, err := s.Update(ctx, task.ID, 1, m)
			require.NoError(t, err)
			assert.Equal(t, int64(2), updated.Version)
			assert.Equal(t, 2, updated.CurrentStep)
			assert.Equal(t, "analysis", updated.StepOutputs[1].Output)

			// stale version
			_, err = s.Update(ctx, task.ID, 1, m)
			var vc *workflow.VersionConflictError
			require.ErrorAs(t, err, &vc)
			assert.Equal(t, int64(1), vc.Expected)

			// missing task
			_, err = s.Update(ctx, uuid.New(), 1, m)
			var nf *workflow.NotFoundError
			require.ErrorAs(t, err, &nf)

			// the conflicting write left nothing behind
			logs, err := s.ListLogs(ctx, task.ID, 0)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, "done", logs[0].Message)

			got, err := s.Get(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), got.Version)
		})
	}
}

func TestTaskStore_Logs(t *testing.T) {
	for name, open := range taskStores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			task := newTask(uuid.New(), time.Now())
			require.NoError(t, s.Create(ctx, task))

			entries, err := s.AppendLog(ctx, task.ID,
				types.LogNote{Step: 1, Message: "a"},
				types.LogNote{Step: 1, Level: types.LogWarn, Message: "b"},
			)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, int64(1), entries[0].Seq)
			assert.Equal(t, int64(2), entries[1].Seq)
			assert.Equal(t, types.LogInfo, entries[0].Level)

			_, err = s.AppendLog(ctx, task.ID, types.LogNote{Step: 1, Message: "c"})
			require.NoError(t, err)

			after, err := s.ListLogs(ctx, task.ID, 1)
			require.NoError(t, err)
			require.Len(t, after, 2)
			assert.Equal(t, "b", after[0].Message)
			assert.Equal(t, types.LogWarn, after[0].Level)
			assert.Equal(t, "c", after[1].Message)

			// appending does not bump the version
			got, err := s.Get(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.Version)

			_, err = s.AppendLog(ctx, uuid.New(), types.LogNote{Message: "x"})
			var nf *workflow.NotFoundError
			assert.ErrorAs(t, err, &nf)
		})
	}
}

func TestTaskStore_ListAndDelete(t *testing.T) {
	for name, open := range taskStores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			chA, chB := uuid.New(), uuid.New()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			var ids []uuid.UUID
			for i, ch := range []uuid.UUID{chA, chA, chB} {
				task := newTask(ch, base.Add(time.Duration(i)*time.Minute))
				require.NoError(t, s.Create(ctx, task))
				ids = append(ids, task.ID)
			}
			_, err := s.Update(ctx, ids[0], 1, types.TaskAborted{Step: 1})
			require.NoError(t, err)

			all, err := s.List(ctx, types.TaskFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, ids[2], all[0].ID, "newest first")

			byChannel, err := s.List(ctx, types.TaskFilter{ChannelID: &chA})
			require.NoError(t, err)
			assert.Len(t, byChannel, 2)

			aborted := types.StatusAborted
			byStatus, err := s.List(ctx, types.TaskFilter{Status: &aborted})
			require.NoError(t, err)
			require.Len(t, byStatus, 1)
			assert.Equal(t, ids[0], byStatus[0].ID)

			paged, err := s.List(ctx, types.TaskFilter{Limit: 1, Offset: 1})
			require.NoError(t, err)
			require.Len(t, paged, 1)
			assert.Equal(t, ids[1], paged[0].ID)

			require.NoError(t, s.Delete(ctx, ids[0]))
			got, err := s.Get(ctx, ids[0])
			require.NoError(t, err)
			assert.Nil(t, got)
			logs, err := s.ListLogs(ctx, ids[0], 0)
			require.NoError(t, err)
			assert.Empty(t, logs)

			var nf *workflow.NotFoundError
			assert.ErrorAs(t, s.Delete(ctx, ids[0]), &nf)
		})
	}
}

func TestTaskStore_ConcurrentUpdatesOneWins(t *testing.T) {
	for name, open := range taskStores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			task := newTask(uuid.New(), time.Now())
			require.NoError(t, s.Create(ctx, task))

			const writers = 8
			var wg sync.WaitGroup
			results := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, task.ID, 1, types.StepFailed{Step: 1, Reason: "x"})
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			wins := 0
			for err := range results {
				if err == nil {
					wins++
				}
			}
			assert.Equal(t, 1, wins)

			got, err := s.Get(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), got.Version)
		})
	}
}

func TestMemory_Catalog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ch := &types.Channel{Slug: "parenting", Name: "Parenting", IsActive: true, BlockedPhrases: []string{"x"}}
	require.NoError(t, m.CreateChannel(ctx, ch))
	assert.NotEqual(t, uuid.Nil, ch.ID)

	var dup *types.DuplicateRecordError
	assert.ErrorAs(t, m.CreateChannel(ctx, &types.Channel{Slug: "parenting"}), &dup)

	got, err := m.GetChannelBySlug(ctx, "parenting")
	require.NoError(t, err)
	require.NotNil(t, got)
	got.BlockedPhrases[0] = "changed"
	again, _ := m.GetChannel(ctx, ch.ID)
	assert.Equal(t, "x", again.BlockedPhrases[0], "returned channels are copies")

	require.NoError(t, m.DeactivateChannel(ctx, ch.ID))
	active, err := m.ListChannels(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := m.ListChannels(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	var nf *types.RecordNotFoundError
	assert.ErrorAs(t, m.DeactivateChannel(ctx, uuid.New()), &nf)
}

func TestMemory_Materials(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	own, other := uuid.New(), uuid.New()

	owned := &types.Material{ChannelID: &own, Content: "sleep routines for toddlers"}
	global := &types.Material{Content: "toddlers need routines"}
	foreign := &types.Material{ChannelID: &other, Content: "toddlers and finance"}
	for _, mat := range []*types.Material{owned, global, foreign} {
		require.NoError(t, m.CreateMaterial(ctx, mat))
	}

	hits, err := m.SearchKeywords(ctx, own, []string{"toddlers"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.True(t, h.VisibleTo(own))
	}

	mine, err := m.ListMaterials(ctx, types.MaterialFilter{ChannelID: &own})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, owned.ID, mine[0].ID)

	globals, err := m.ListMaterials(ctx, types.MaterialFilter{GlobalOnly: true})
	require.NoError(t, err)
	require.Len(t, globals, 1)

	pending, err := m.ListUnembeddedMaterials(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, m.SetMaterialEmbedding(ctx, owned.ID, []float32{1, 0}))
	pending, err = m.ListUnembeddedMaterials(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	near, err := m.NearestNeighbors(ctx, own, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.InDelta(t, 1.0, near[0].Similarity, 1e-9)

	require.NoError(t, m.DeleteMaterial(ctx, owned.ID))
	var nf *types.RecordNotFoundError
	assert.ErrorAs(t, m.DeleteMaterial(ctx, owned.ID), &nf)
}

func TestMemory_EditorsAndAssets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	e := &types.Editor{Name: "Lin", Email: "lin@example.com", PasswordHash: "h"}
	require.NoError(t, m.CreateEditor(ctx, e))
	var dup *types.DuplicateRecordError
	assert.ErrorAs(t, m.CreateEditor(ctx, &types.Editor{Email: "LIN@example.com"}), &dup)

	got, err := m.GetEditorByEmail(ctx, "Lin@Example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)

	require.NoError(t, m.PutBrandAsset(ctx, &types.BrandAsset{Key: types.AssetBlockingWords, Content: "- a"}))
	asset, err := m.GetBrandAsset(ctx, types.AssetBlockingWords)
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "- a", asset.Content)

	none, err := m.GetBrandAsset(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}
