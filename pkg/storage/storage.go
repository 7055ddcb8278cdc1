package storage

import (
	"context"
	"fmt"
	"sort"

	"mercator-hq/charter/pkg/policy"
)

// PolicyFilter narrows ListPolicies. Zero fields match everything.
type PolicyFilter struct {
	OrgID      string
	Status     policy.Status
	Framework  string
	AutoUpdate *bool
}

// Matches reports whether p passes the filter.
func (f PolicyFilter) Matches(p *policy.Policy) bool {
	if f.OrgID != "" && p.OrgID != f.OrgID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Framework != "" && !p.HasFramework(f.Framework) {
		return false
	}
	if f.AutoUpdate != nil && p.AutoUpdate != *f.AutoUpdate {
		return false
	}
	return true
}

// PolicyRepository persists policies.
type PolicyRepository interface {
	// CreatePolicy stores a new policy at revision 1.
	CreatePolicy(ctx context.Context, p *policy.Policy) error

	// GetPolicy returns a copy of the stored policy.
	GetPolicy(ctx context.Context, id string) (*policy.Policy, error)

	// ListPolicies returns matching policies sorted by ID.
	ListPolicies(ctx context.Context, filter PolicyFilter) ([]*policy.Policy, error)

	// UpdatePolicy atomically saves p and the given approvals. p.Revision and
	// each approval's Revision are the base revisions; approvals at revision
	// 0 that are not yet stored are created.
	UpdatePolicy(ctx context.Context, p *policy.Policy, approvals ...*policy.Approval) error
}

// ApprovalRepository persists approvals.
type ApprovalRepository interface {
	GetApproval(ctx context.Context, id string) (*policy.Approval, error)

	// ListApprovals returns the approvals of a policy sorted by step, then
	// role.
	ListApprovals(ctx context.Context, policyID string) ([]*policy.Approval, error)

	// UpdateApprovals saves approvals without touching their policy.
	UpdateApprovals(ctx context.Context, approvals ...*policy.Approval) error
}

// ClauseRepository persists clauses edited after the library was loaded.
type ClauseRepository interface {
	// SaveClause stores c if the stored revision equals baseRevision. When no
	// edit of the clause is stored yet the caller has already checked
	// baseRevision against the library clause. On success c.Revision is
	// baseRevision+1.
	SaveClause(ctx context.Context, c *policy.Clause, baseRevision int64) error

	GetClause(ctx context.Context, id string) (*policy.Clause, error)

	// ListClauses returns every stored clause sorted by ID.
	ListClauses(ctx context.Context) ([]*policy.Clause, error)
}

// Store combines the repositories of one backend.
type Store interface {
	PolicyRepository
	ApprovalRepository
	ClauseRepository

	// Close releases backend resources.
	Close() error
}

// CheckPolicyHistory verifies that next's diff history and approval trail
// extend the stored ones.
func CheckPolicyHistory(stored, next *policy.Policy) error {
	if len(next.DiffHistory) < len(stored.DiffHistory) {
		return fmt.Errorf("policy %s: diff history shrank from %d to %d entries: %w",
			next.ID, len(stored.DiffHistory), len(next.DiffHistory), ErrAppendOnlyViolation)
	}
	for i, d := range stored.DiffHistory {
		if !sameDiff(d, next.DiffHistory[i]) {
			return fmt.Errorf("policy %s: diff history entry %d rewritten: %w", next.ID, i, ErrAppendOnlyViolation)
		}
	}

	if len(next.ApprovalTrail) < len(stored.ApprovalTrail) {
		return fmt.Errorf("policy %s: approval trail shrank from %d to %d entries: %w",
			next.ID, len(stored.ApprovalTrail), len(next.ApprovalTrail), ErrAppendOnlyViolation)
	}
	for i := range stored.ApprovalTrail {
		if !sameSnapshot(&stored.ApprovalTrail[i], &next.ApprovalTrail[i]) {
			return fmt.Errorf("policy %s: approval trail entry %d rewritten: %w", next.ID, i, ErrAppendOnlyViolation)
		}
	}
	return nil
}

// CheckComments verifies that next's comment thread extends the stored one.
func CheckComments(stored, next *policy.Approval) error {
	if len(next.Comments) < len(stored.Comments) {
		return fmt.Errorf("approval %s: comments shrank from %d to %d: %w",
			next.ID, len(stored.Comments), len(next.Comments), ErrAppendOnlyViolation)
	}
	for i, c := range stored.Comments {
		n := next.Comments[i]
		if c.Author != n.Author || c.Role != n.Role || c.Action != n.Action || c.Text != n.Text || !c.CreatedAt.Equal(n.CreatedAt) {
			return fmt.Errorf("approval %s: comment %d rewritten: %w", next.ID, i, ErrAppendOnlyViolation)
		}
	}
	return nil
}

func sameDiff(a, b policy.Diff) bool {
	return a.ID == b.ID &&
		a.Version == b.Version &&
		a.ChangeType == b.ChangeType &&
		a.SectionID == b.SectionID &&
		a.OriginalText == b.OriginalText &&
		a.NewText == b.NewText &&
		a.PrecedingSectionID == b.PrecedingSectionID
}

func sameSnapshot(a, b *policy.Approval) bool {
	return a.ID == b.ID &&
		a.Role == b.Role &&
		a.Action == b.Action &&
		a.Signer == b.Signer &&
		a.IsComplete == b.IsComplete &&
		len(a.Comments) == len(b.Comments)
}

// SortApprovals orders approvals by step, then role.
func SortApprovals(approvals []*policy.Approval) {
	sort.Slice(approvals, func(i, j int) bool {
		if approvals[i].Step != approvals[j].Step {
			return approvals[i].Step < approvals[j].Step
		}
		return approvals[i].Role < approvals[j].Role
	})
}
