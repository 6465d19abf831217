package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

var _ workflow.TaskStore = (*SQLite)(nil)

// OpenSQLite opens (or creates) a SQLite database at the given path.
// Connection-scoped pragmas go in the DSN so every pooled connection gets them.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// WAL lets log followers read while a step writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQLite is a TaskStore backed by an embedded SQLite database. The task is
// stored as one JSON document next to the columns used for filtering.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates the store and applies pending migrations.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []func() error{
		s.migrateV1, // v0 → v1: tasks and task logs
	}
	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLite) migrateV1() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id           TEXT PRIMARY KEY,
			channel_id   TEXT NOT NULL,
			status       TEXT NOT NULL,
			current_step INTEGER NOT NULL,
			version      INTEGER NOT NULL,
			doc          TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_channel ON tasks(channel_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

		CREATE TABLE IF NOT EXISTS task_logs (
			task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			step       INTEGER NOT NULL,
			level      TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (task_id, seq)
		);
	`)
	return err
}

// Create implements workflow.TaskStore.
func (s *SQLite) Create(ctx context.Context, task *types.WritingTask) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, channel_id, status, current_step, version, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(), task.ChannelID.String(), string(task.Status), task.CurrentStep, task.Version,
		string(doc), formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
	)
	if err != nil {
		return classify("create task", err)
	}
	return nil
}

// Get implements workflow.TaskStore.
func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (*types.WritingTask, error) {
	task, err := loadTask(ctx, s.db, id)
	if err != nil {
		return nil, classify("get task", err)
	}
	return task, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadTask(ctx context.Context, q queryer, id uuid.UUID) (*types.WritingTask, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM tasks WHERE id = ?`, id.String()).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task types.WritingTask
	if err := json.Unmarshal([]byte(doc), &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", id, err)
	}
	if task.StepOutputs == nil {
		task.StepOutputs = map[int]types.StepOutput{}
	}
	return &task, nil
}

// Update implements workflow.TaskStore. The version check and the write
// happen in one transaction; the UPDATE repeats the check so a concurrent
// writer on another connection cannot slip in between.
func (s *SQLite) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, m types.Mutation) (*types.WritingTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin update", err)
	}
	defer tx.Rollback()

	task, err := loadTask(ctx, tx, id)
	if err != nil {
		return nil, classify("load task", err)
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
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, current_step = ?, version = ?, doc = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(task.Status), task.CurrentStep, task.Version, string(doc), formatTime(now),
		id.String(), expectedVersion,
	)
	if err != nil {
		return nil, classify("update task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &workflow.VersionConflictError{TaskID: id, Expected: expectedVersion, Actual: expectedVersion + 1}
	}
	if _, err := insertLogs(ctx, tx, id, now, m.Notes()); err != nil {
		return nil, classify("append log", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit update", err)
	}
	return task, nil
}

// List implements workflow.TaskStore.
func (s *SQLite) List(ctx context.Context, filter types.TaskFilter) ([]types.WritingTask, error) {
	var where []string
	var args []any
	if filter.ChannelID != nil {
		where = append(where, "channel_id = ?")
		args = append(args, filter.ChannelID.String())
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	query := `SELECT doc FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	defer rows.Close()

	tasks := []types.WritingTask{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, classify("scan task", err)
		}
		var task types.WritingTask
		if err := json.Unmarshal([]byte(doc), &task); err != nil {
			return nil, fmt.Errorf("failed to decode task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list tasks", err)
	}
	return tasks, nil
}

// Delete implements workflow.TaskStore. Logs go with the task.
func (s *SQLite) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_logs WHERE task_id = ?`, id.String()); err != nil {
		return classify("delete task logs", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return classify("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &workflow.NotFoundError{TaskID: id}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit delete", err)
	}
	return nil
}

// AppendLog implements workflow.TaskStore.
func (s *SQLite) AppendLog(ctx context.Context, id uuid.UUID, notes ...types.LogNote) ([]types.LogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin append log", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id.String()).Scan(&exists); err != nil {
		return nil, classify("append log", err)
	}
	if exists == 0 {
		return nil, &workflow.NotFoundError{TaskID: id}
	}
	entries, err := insertLogs(ctx, tx, id, s.now(), notes)
	if err != nil {
		return nil, classify("append log", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit append log", err)
	}
	return entries, nil
}

func insertLogs(ctx context.Context, tx *sql.Tx, id uuid.UUID, now time.Time, notes []types.LogNote) ([]types.LogEntry, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM task_logs WHERE task_id = ?`, id.String()).Scan(&seq); err != nil {
		return nil, err
	}
	entries := make([]types.LogEntry, 0, len(notes))
	for _, n := range notes {
		seq++
		e := n.Entry(id, now)
		e.Seq = seq
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_logs (task_id, seq, step, level, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id.String(), e.Seq, e.Step, string(e.Level), e.Message, formatTime(e.Timestamp),
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ListLogs implements workflow.TaskStore.
func (s *SQLite) ListLogs(ctx context.Context, id uuid.UUID, afterSeq int64) ([]types.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, step, level, message, created_at FROM task_logs
		 WHERE task_id = ? AND seq > ? ORDER BY seq`,
		id.String(), afterSeq,
	)
	if err != nil {
		return nil, classify("list logs", err)
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		e := types.LogEntry{TaskID: id}
		var level, ts string
		if err := rows.Scan(&e.Seq, &e.Step, &level, &e.Message, &ts); err != nil {
			return nil, classify("scan log", err)
		}
		e.Level = types.LogLevel(level)
		e.Timestamp, _ = time.Parse(timeLayout, ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list logs", err)
	}
	return entries, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// classify wraps a driver error as a PersistenceError. Busy and locked
// databases are transient.
func classify(op string, err error) error {
	var se *sqlite.Error
	transient := false
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			transient = true
		}
	}
	return &workflow.PersistenceError{Op: op, Cause: err, Transient: transient}
}
