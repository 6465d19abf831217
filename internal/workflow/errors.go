package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError is an illegal transition. Task state is unchanged.
type ValidationError struct {
	Op      string
	TaskID  uuid.UUID
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s task %s: %s", e.Op, e.TaskID, e.Message)
}

// NotFoundError is returned for an unknown task.
type NotFoundError struct {
	TaskID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// ConflictError is returned when another call is already running on the task.
type ConflictError struct {
	TaskID  uuid.UUID
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s busy: %s", e.TaskID, e.Message)
}

// VersionConflictError is returned by a store when the expected version is stale.
type VersionConflictError struct {
	TaskID   uuid.UUID
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("task %s version conflict: expected %d, found %d", e.TaskID, e.Expected, e.Actual)
}

// PersistenceError wraps a store failure. Transient failures may be retried.
type PersistenceError struct {
	Op        string
	Cause     error
	Transient bool
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ConfigurationError is a hard misconfiguration such as an unknown channel.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is a retryable persistence failure.
func IsTransient(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Transient
}
