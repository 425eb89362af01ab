package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entity is not found in the plan store.
var ErrNotFound = errors.New("entity not found")

// ValidationError reports an input that violates a model invariant.
// No persistence change happens when one is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Msg)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when a save is rejected because the Conflict
// Detector found blocking overlaps. Warnings ride along so the caller can
// decide whether to override a save that only produced non-blocking items.
type ConflictError struct {
	Blocking []ConflictItem
	Warnings []ConflictItem
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %d blocking, %d warnings", len(e.Blocking), len(e.Warnings))
}

// IntegrityError wraps a store-level rejection (FK violation, unique
// constraint). The enclosing transaction has been rolled back.
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// ExternalUnavailable reports a failed best-effort external lookup. It is
// never fatal; callers fall back to cache, defaults, or extrapolation.
type ExternalUnavailable struct {
	Source string
	Err    error
}

func (e *ExternalUnavailable) Error() string {
	return fmt.Sprintf("external source %s unavailable: %v", e.Source, e.Err)
}

func (e *ExternalUnavailable) Unwrap() error { return e.Err }

// FileIOError reports a failed media or document staging operation. The
// DB row was not committed and any partial file has been removed.
type FileIOError struct {
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("file io: %s: %v", e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }
