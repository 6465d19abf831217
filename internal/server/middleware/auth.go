// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const editorIDKey ContextKey = "editorID"

// TokenQueryParam carries a bearer token on GET requests from clients that
// cannot set headers (EventSource, browser WebSocket).
const TokenQueryParam = "access_token"

// ErrNoEditor is returned when the request carries no authenticated editor.
var ErrNoEditor = errors.New("editor ID not found in request context")

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (EditorIDGetter, error)
}

// EditorIDGetter extracts the editor ID from token claims.
type EditorIDGetter interface {
	GetEditorID() uuid.UUID
}

// Auth rejects requests without a valid bearer token and stores the editor
// ID in the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				unauthorized(w)
				return
			}
			ctx := WithEditorID(r.Context(), claims.GetEditorID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get(TokenQueryParam)
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="article-agent"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}

// WithEditorID returns ctx carrying the editor ID.
func WithEditorID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, editorIDKey, id)
}

// EditorID extracts the authenticated editor ID from the request context.
func EditorID(r *http.Request) (uuid.UUID, error) {
	id, ok := r.Context().Value(editorIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoEditor
	}
	return id, nil
}
