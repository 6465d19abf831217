// Package server provides the HTTP REST API for the article agent.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/article-agent/internal/catalog"
	"github.com/jonathan/article-agent/internal/fetch"
	"github.com/jonathan/article-agent/internal/llm"
	"github.com/jonathan/article-agent/internal/style"
	"github.com/jonathan/article-agent/internal/types"
	"github.com/jonathan/article-agent/internal/workflow"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		emailTaken  *ErrEmailAlreadyExists
		badCreds    *ErrInvalidCredentials
		badRequest  *ErrValidation
		badInput    *catalog.InvalidInputError
		transition  *workflow.ValidationError
		taskMissing *workflow.NotFoundError
		busy        *workflow.ConflictError
		stale       *workflow.VersionConflictError
		misconfig   *workflow.ConfigurationError
		persistence *workflow.PersistenceError
		generation  *llm.GenerationError
		analysis    *style.AnalysisError
		fetchErr    *fetch.Error
		missing     *types.RecordNotFoundError
		duplicate   *types.DuplicateRecordError
	)
	switch {
	case errors.As(err, &emailTaken), errors.As(err, &duplicate):
		return http.StatusConflict
	case errors.As(err, &badCreds):
		return http.StatusUnauthorized
	case errors.As(err, &badRequest), errors.As(err, &badInput):
		return http.StatusBadRequest
	case errors.As(err, &transition):
		// Without a task the request itself was invalid; with one it asked
		// for a transition the task's state does not allow.
		if transition.TaskID == uuid.Nil {
			return http.StatusBadRequest
		}
		return http.StatusConflict
	case errors.As(err, &busy), errors.As(err, &stale):
		return http.StatusConflict
	case errors.As(err, &taskMissing), errors.As(err, &missing):
		return http.StatusNotFound
	case errors.As(err, &misconfig):
		return http.StatusUnprocessableEntity
	case errors.As(err, &generation), errors.As(err, &analysis), errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.As(err, &persistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine-readable error kind returned with every error body.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "configuration_error"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}
