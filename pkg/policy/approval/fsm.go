package approval

import (
	"errors"
	"fmt"

	"mercator-hq/charter/pkg/policy"
)

// ErrInvalidTransition is returned for a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid policy status transition")

// CanTransition reports whether a policy may move from one status to another.
func CanTransition(from, to policy.Status) bool {
	switch from {
	case policy.StatusDraft:
		return to == policy.StatusReview
	case policy.StatusReview:
		return to == policy.StatusReview || to == policy.StatusApproved ||
			to == policy.StatusRejected || to == policy.StatusDraft
	case policy.StatusApproved, policy.StatusRejected:
		return to == policy.StatusDraft
	default:
		return false
	}
}

// Transition returns to if the move is allowed, otherwise from and an error
// wrapping ErrInvalidTransition.
func Transition(from, to policy.Status) (policy.Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

// IsTerminal reports whether no approval action can change the status.
func IsTerminal(s policy.Status) bool {
	return s == policy.StatusApproved || s == policy.StatusRejected
}
