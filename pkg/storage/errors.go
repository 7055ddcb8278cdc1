package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating an entity whose ID is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrRevisionConflict is returned when a write's base revision is stale.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrAppendOnlyViolation is returned when a write would rewrite or drop
	// append-only history.
	ErrAppendOnlyViolation = errors.New("append-only history violated")
)

// Error reports a backend failure.
type Error struct {
	Backend   string // "memory", "sqlite"
	Operation string // "get_policy", "update_policy", ...
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(backend, operation string, cause error) *Error {
	return &Error{Backend: backend, Operation: operation, Cause: cause}
}

// ConflictError details a revision conflict. It matches ErrRevisionConflict
// with errors.Is.
type ConflictError struct {
	Kind    string // "policy", "approval", "clause"
	ID      string
	Base    int64
	Current int64
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: revision conflict: base revision %d, current %d", e.Kind, e.ID, e.Base, e.Current)
}

// Is reports whether target is ErrRevisionConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrRevisionConflict
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func alreadyExists(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrAlreadyExists)
}
