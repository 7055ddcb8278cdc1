package approval

import (
	"errors"
	"fmt"

	"mercator-hq/charter/pkg/policy"
)

// ErrNoWorkflowDefined is returned when a template has no registered
// approval workflow.
var ErrNoWorkflowDefined = errors.New("no approval workflow defined")

// ValidationError rejects an approval request. The policy and approvals are
// left unchanged.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// OutOfOrderError is returned when a sequential workflow step is acted on
// before the steps ahead of it are approved.
type OutOfOrderError struct {
	ApprovalID string
	Step       int
	Waiting    []policy.Role
}

// Error implements the error interface.
func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("approval %s (step %d) is waiting on %v", e.ApprovalID, e.Step, e.Waiting)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
