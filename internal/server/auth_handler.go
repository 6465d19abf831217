package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/article-agent/internal/server/middleware"
	"github.com/jonathan/article-agent/internal/types"
)

// AuthHandler handles editor registration and login.
type AuthHandler struct {
	editors   *EditorService
	jwt       *JWTService
	validator *validator.Validate
	server    *Server
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(s *Server, editors *EditorService, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{editors: editors, jwt: jwtService, validator: validator.New(), server: s}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterEditorRequest
	if !h.server.decode(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.server.writeError(w, r, validationError(err))
		return
	}

	editor, err := h.editors.Register(r.Context(), &req)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, editor)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !h.server.decode(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.server.writeError(w, r, validationError(err))
		return
	}

	editor, err := h.editors.Login(r.Context(), &req)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, editor)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.EditorID(r)
	if err != nil {
		h.server.writeError(w, r, &ErrInvalidCredentials{})
		return
	}
	editor, err := h.editors.Get(r.Context(), id)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	h.server.jsonResponse(w, http.StatusOK, editor)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, editor *types.Editor) {
	token, err := h.jwt.GenerateToken(editor.ID)
	if err != nil {
		h.server.writeError(w, r, fmt.Errorf("failed to generate token: %w", err))
		return
	}
	h.server.jsonResponse(w, status, types.LoginResponse{Editor: editor, Token: token})
}

// validationError converts the first validator failure into an ErrValidation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ErrValidation{Field: verrs[0].Field(), Message: verrs[0].Tag()}
	}
	return &ErrValidation{Message: "invalid request"}
}
