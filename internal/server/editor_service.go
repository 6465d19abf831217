package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/catalog"
	"github.com/jonathan/article-agent/internal/config"
	"github.com/jonathan/article-agent/internal/types"
)

// EditorService registers and authenticates editor accounts.
type EditorService struct {
	store  catalog.EditorStore
	hasher *config.PasswordHasher
}

// NewEditorService creates an EditorService.
func NewEditorService(store catalog.EditorStore, hasher *config.PasswordHasher) *EditorService {
	return &EditorService{store: store, hasher: hasher}
}

// Register creates an editor with a hashed password.
func (s *EditorService) Register(ctx context.Context, req *types.RegisterEditorRequest) (*types.Editor, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := s.store.GetEditorByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if existing != nil {
		return nil, &ErrEmailAlreadyExists{Email: email}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, &ErrValidation{Field: "Password", Message: err.Error()}
	}

	editor := &types.Editor{Name: strings.TrimSpace(req.Name), Email: email, PasswordHash: hash}
	if err := s.store.CreateEditor(ctx, editor); err != nil {
		var dup *types.DuplicateRecordError
		if errors.As(err, &dup) {
			return nil, &ErrEmailAlreadyExists{Email: email}
		}
		return nil, fmt.Errorf("failed to create editor: %w", err)
	}
	return editor, nil
}

// Login verifies credentials. Unknown emails and wrong passwords yield the
// same error.
func (s *EditorService) Login(ctx context.Context, req *types.LoginRequest) (*types.Editor, error) {
	editor, err := s.store.GetEditorByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("failed to load editor: %w", err)
	}
	if editor == nil || !s.hasher.Verify(req.Password, editor.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return editor, nil
}

// Get returns an editor by ID.
func (s *EditorService) Get(ctx context.Context, id uuid.UUID) (*types.Editor, error) {
	editor, err := s.store.GetEditor(ctx, id)
	if err != nil {
		return nil, err
	}
	if editor == nil {
		return nil, &types.RecordNotFoundError{Kind: "editor", Key: id.String()}
	}
	return editor, nil
}
