package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/types"
)

// CreateEditor inserts an editor account. Emails are unique ignoring case.
func (db *DB) CreateEditor(ctx context.Context, e *types.Editor) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := db.pool.QueryRow(ctx, `
		INSERT INTO editors (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Email, e.PasswordHash,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.DuplicateRecordError{Kind: "editor", Key: e.Email}
		}
		return fmt.Errorf("failed to create editor: %w", err)
	}
	return nil
}

// GetEditor retrieves an editor by ID. Returns nil when not found.
func (db *DB) GetEditor(ctx context.Context, id uuid.UUID) (*types.Editor, error) {
	return db.getEditor(ctx, `WHERE id = $1`, id)
}

// GetEditorByEmail retrieves an editor by email, ignoring case.
// Returns nil when not found.
func (db *DB) GetEditorByEmail(ctx context.Context, email string) (*types.Editor, error) {
	return db.getEditor(ctx, `WHERE LOWER(email) = LOWER($1)`, email)
}

func (db *DB) getEditor(ctx context.Context, where string, arg any) (*types.Editor, error) {
	var e types.Editor
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at FROM editors `+where, arg,
	).Scan(&e.ID, &e.Name, &e.Email, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get editor: %w", err)
	}
	return &e, nil
}
