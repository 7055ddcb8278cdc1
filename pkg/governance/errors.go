package governance

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindEvaluation    Kind = "evaluation"
	KindBatch         Kind = "batch"
)

// Error is the caller-facing error type. Its message always ends with the
// standing disclaimer.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation that failed (e.g., "generate policy").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed [%s]: %v. %s", e.Op, e.Kind, e.Cause, Disclaimer)
	}
	return fmt.Sprintf("%s failed [%s]. %s", e.Op, e.Kind, Disclaimer)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap converts err into an *Error of the given kind. A nil err returns nil.
// If err already is an *Error it is returned as is so the disclaimer is not
// repeated.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}
	return &Error{Kind: kind, Op: op, Cause: err}
}

// Newf builds an *Error from a formatted message.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Cause: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
