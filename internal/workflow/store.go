package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/types"
)

// TaskStore persists writing tasks and their logs.
//
// Get returns (nil, nil) for an unknown task. Update loads the task, applies
// the mutation only if the stored version equals expectedVersion, and writes
// the task together with the mutation's log notes in one transaction. A stale
// version yields *VersionConflictError and a missing task *NotFoundError.
type TaskStore interface {
	Create(ctx context.Context, task *types.WritingTask) error
	Get(ctx context.Context, id uuid.UUID) (*types.WritingTask, error)
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, m types.Mutation) (*types.WritingTask, error)
	List(ctx context.Context, filter types.TaskFilter) ([]types.WritingTask, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AppendLog adds entries without touching the task version.
	AppendLog(ctx context.Context, id uuid.UUID, notes ...types.LogNote) ([]types.LogEntry, error)
	// ListLogs returns entries with Seq > afterSeq in append order.
	ListLogs(ctx context.Context, id uuid.UUID, afterSeq int64) ([]types.LogEntry, error)
}

// ChannelProvider resolves a task's channel.
// It returns (nil, nil) for an unknown channel.
type ChannelProvider interface {
	GetChannel(ctx context.Context, id uuid.UUID) (*types.Channel, error)
}
