package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entity id does not resolve.
var ErrNotFound = errors.New("not found")

// ValidationError rejects an attribute before anything is persisted. It
// renders back into the submitted form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError maps a unique violation back to the offending field.
// Uniqueness is scoped to non-deleted rows.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ReferentialError rejects a soft delete while live rows still point at
// the entity.
type ReferentialError struct {
	Message string
}

func (e *ReferentialError) Error() string { return e.Message }

// FatalError signals corrupted state, such as a hook fixpoint that never
// converges. The transaction is aborted and the error logged at ERROR.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string { return e.Message }

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
)
