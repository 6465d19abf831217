package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/types"
)

// RetryPolicy configures store retries.
type RetryPolicy struct {
	Attempts int           `yaml:"attempts" validate:"min=1,max=10"`
	Backoff  time.Duration `yaml:"backoff"`
}

// DefaultRetryPolicy is three attempts 200ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond}
}

// retryStore retries transient persistence failures. Version conflicts,
// missing tasks and everything else pass through on the first failure.
type retryStore struct {
	TaskStore
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps store with policy.
func WithRetry(store TaskStore, policy RetryPolicy, logger *slog.Logger) TaskStore {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryStore{TaskStore: store, policy: policy, logger: logger}
}

func (r *retryStore) do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if attempt == r.policy.Attempts {
			break
		}
		r.logger.Warn("transient store failure, retrying", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.policy.Backoff):
		}
	}
	return err
}

func (r *retryStore) Create(ctx context.Context, task *types.WritingTask) error {
	return r.do(ctx, "create", func() error { return r.TaskStore.Create(ctx, task) })
}

func (r *retryStore) Get(ctx context.Context, id uuid.UUID) (*types.WritingTask, error) {
	var task *types.WritingTask
	err := r.do(ctx, "get", func() (err error) {
		task, err = r.TaskStore.Get(ctx, id)
		return err
	})
	return task, err
}

func (r *retryStore) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, m types.Mutation) (*types.WritingTask, error) {
	var task *types.WritingTask
	err := r.do(ctx, "update:"+m.Name(), func() (err error) {
		task, err = r.TaskStore.Update(ctx, id, expectedVersion, m)
		return err
	})
	return task, err
}

func (r *retryStore) List(ctx context.Context, filter types.TaskFilter) ([]types.WritingTask, error) {
	var tasks []types.WritingTask
	err := r.do(ctx, "list", func() (err error) {
		tasks, err = r.TaskStore.List(ctx, filter)
		return err
	})
	return tasks, err
}

func (r *retryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return r.do(ctx, "delete", func() error { return r.TaskStore.Delete(ctx, id) })
}

func (r *retryStore) AppendLog(ctx context.Context, id uuid.UUID, notes ...types.LogNote) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	err := r.do(ctx, "append_log", func() (err error) {
		entries, err = r.TaskStore.AppendLog(ctx, id, notes...)
		return err
	})
	return entries, err
}

func (r *retryStore) ListLogs(ctx context.Context, id uuid.UUID, afterSeq int64) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	err := r.do(ctx, "list_logs", func() (err error) {
		entries, err = r.TaskStore.ListLogs(ctx, id, afterSeq)
		return err
	})
	return entries, err
}
