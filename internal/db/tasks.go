package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

var _ workflow.TaskStore = (*TaskStore)(nil)

// TaskStore is a workflow.TaskStore on PostgreSQL. The task is kept as a
// JSONB document next to the columns used for filtering; Update takes a row
// lock so the version check and the write cannot interleave.
type TaskStore struct {
	db  *DB
	now func() time.Time
}

// NewTaskStore creates a task store on db.
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db, now: time.Now}
}

// Create implements workflow.TaskStore.
func (s *TaskStore) Create(ctx context.Context, task *types.WritingTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO writing_tasks (id, channel_id, status, current_step, version, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		task.ID, task.ChannelID, string(task.Status), task.CurrentStep, task.Version, doc,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return persistenceError("create_task", err)
	}
	return nil
}

// Get implements workflow.TaskStore.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*types.WritingTask, error) {
	task, err := scanTask(s.db.pool.QueryRow(ctx, `SELECT doc FROM writing_tasks WHERE id = $1`, id))
	if err != nil {
		return nil, persistenceError("get_task", err)
	}
	return task, nil
}

func scanTask(row pgx.Row) (*types.WritingTask, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	var task types.WritingTask
	if err := json.Unmarshal(doc, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	if task.StepOutputs == nil {
		task.StepOutputs = map[int]types.StepOutput{}
	}
	return &task, nil
}

// Update implements workflow.TaskStore.
func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, m types.Mutation) (*types.WritingTask, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceError("begin_update", err)
	}
	defer tx.Rollback(ctx)

	task, err := scanTask(tx.QueryRow(ctx, `SELECT doc FROM writing_tasks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, persistenceError("load_task", err)
	}
	if task == nil {
		return nil, &workflow.NotFoundError{TaskID: id}
	}
	if task.Version != expectedVersion {
		return nil, &workflow.VersionConflictError{TaskID: id, Expected: expectedVersion, Actual: task.Version}
	}

	now := s.now()
	types.Apply(task, m, now)
	doc, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE writing_tasks SET status = $2, current_step = $3, version = $4, doc = $5, updated_at = $6
		 WHERE id = $1`,
		id, string(task.Status), task.CurrentStep, task.Version, doc, now,
	)
	if err != nil {
		return nil, persistenceError("update_task", err)
	}
	if _, err := insertLogs(ctx, tx, id, now, m.Notes()); err != nil {
		return nil, persistenceError("append_log", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceError("commit_update", err)
	}
	return task, nil
}

// List implements workflow.TaskStore.
func (s *TaskStore) List(ctx context.Context, filter types.TaskFilter) ([]types.WritingTask, error) {
	var where []string
	var args []any
	if filter.ChannelID != nil {
		args = append(args, *filter.ChannelID)
		where = append(where, fmt.Sprintf("channel_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT doc FROM writing_tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list_tasks", err)
	}
	defer rows.Close()

	tasks := []types.WritingTask{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, persistenceError("scan_task", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list_tasks", err)
	}
	return tasks, nil
}

// Delete implements workflow.TaskStore. Logs cascade.
func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.pool.Exec(ctx, `DELETE FROM writing_tasks WHERE id = $1`, id)
	if err != nil {
		return persistenceError("delete_task", err)
	}
	if tag.RowsAffected() == 0 {
		return &workflow.NotFoundError{TaskID: id}
	}
	return nil
}

// AppendLog implements workflow.TaskStore. The task row is locked so
// sequence numbers stay dense against a concurrent Update.
func (s *TaskStore) AppendLog(ctx context.Context, id uuid.UUID, notes ...types.LogNote) ([]types.LogEntry, error) {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceError("begin_append_log", err)
	}
	defer tx.Rollback(ctx)

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM writing_tasks WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if isNoRows(err) {
		return nil, &workflow.NotFoundError{TaskID: id}
	}
	if err != nil {
		return nil, persistenceError("append_log", err)
	}
	entries, err := insertLogs(ctx, tx, id, s.now(), notes)
	if err != nil {
		return nil, persistenceError("append_log", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceError("commit_append_log", err)
	}
	return entries, nil
}

// insertLogs must run while the task row is locked.
func insertLogs(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time, notes []types.LogNote) ([]types.LogEntry, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM task_logs WHERE task_id = $1`, id).Scan(&seq); err != nil {
		return nil, err
	}

	entries := make([]types.LogEntry, 0, len(notes))
	batch := &pgx.Batch{}
	for _, n := range notes {
		seq++
		e := n.Entry(id, now)
		e.Seq = seq
		batch.Queue(
			`INSERT INTO task_logs (task_id, seq, step, level, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			id, e.Seq, e.Step, string(e.Level), e.Message, e.Timestamp,
		)
		entries = append(entries, e)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListLogs implements workflow.TaskStore.
func (s *TaskStore) ListLogs(ctx context.Context, id uuid.UUID, afterSeq int64) ([]types.LogEntry, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT seq, step, level, message, created_at FROM task_logs
		 WHERE task_id = $1 AND seq > $2 ORDER BY seq`,
		id, afterSeq,
	)
	if err != nil {
		return nil, persistenceError("list_logs", err)
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		e := types.LogEntry{TaskID: id}
		var level string
		if err := rows.Scan(&e.Seq, &e.Step, &level, &e.Message, &e.Timestamp); err != nil {
			return nil, persistenceError("scan_log", err)
		}
		e.Level = types.LogLevel(level)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list_logs", err)
	}
	return entries, nil
}
