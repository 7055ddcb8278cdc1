package catalog

import "fmt"

// LoadError reports a catalog file that could not be read or decoded.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load catalog %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load catalog %q: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}
