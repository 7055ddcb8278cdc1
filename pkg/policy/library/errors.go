package library

import (
	"fmt"
	"strings"
)

// LoadError reports a library file that could not be read or decoded.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load library file %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load library file %q: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// DuplicateError reports two definitions with the same ID.
type DuplicateError struct {
	Kind  string
	ID    string
	Files []string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q defined in %s", e.Kind, e.ID, strings.Join(e.Files, ", "))
}

// ErrorList aggregates errors from a multi-file load.
type ErrorList struct {
	Errors []error
}

// Add appends err if it is not nil.
func (l *ErrorList) Add(err error) {
	if err != nil {
		l.Errors = append(l.Errors, err)
	}
}

// HasErrors reports whether any error was added.
func (l *ErrorList) HasErrors() bool {
	return len(l.Errors) > 0
}

// Err returns l as an error, or nil if it is empty.
func (l *ErrorList) Err() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// Error implements the error interface.
func (l *ErrorList) Error() string {
	if len(l.Errors) == 1 {
		return l.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d library errors:", len(l.Errors))
	for _, err := range l.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	return l.Errors
}
