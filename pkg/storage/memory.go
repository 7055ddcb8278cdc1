package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/charter/pkg/policy"
)

// MemoryStore implements Store with in-memory maps. Values are copied on the
// way in and out, so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	policies  map[string]*policy.Policy
	approvals map[string]*policy.Approval
	clauses   map[string]*policy.Clause
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies:  make(map[string]*policy.Policy),
		approvals: make(map[string]*policy.Approval),
		clauses:   make(map[string]*policy.Clause),
	}
}

// CreatePolicy implements PolicyRepository.
func (s *MemoryStore) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[p.ID]; ok {
		return alreadyExists("policy", p.ID)
	}
	stored := p.Clone()
	stored.Revision = 1
	s.policies[p.ID] = stored
	p.Revision = 1
	return nil
}

// GetPolicy implements PolicyRepository.
func (s *MemoryStore) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, notFound("policy", id)
	}
	return p.Clone(), nil
}

// ListPolicies implements PolicyRepository.
func (s *MemoryStore) ListPolicies(ctx context.Context, filter PolicyFilter) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*policy.Policy{}
	for _, p := range s.policies {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdatePolicy implements PolicyRepository.
func (s *MemoryStore) UpdatePolicy(ctx context.Context, p *policy.Policy, approvals ...*policy.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.policies[p.ID]
	if !ok {
		return notFound("policy", p.ID)
	}
	if stored.Revision != p.Revision {
		return &ConflictError{Kind: "policy", ID: p.ID, Base: p.Revision, Current: stored.Revision}
	}
	if err := CheckPolicyHistory(stored, p); err != nil {
		return err
	}
	for _, a := range approvals {
		if a.PolicyID != p.ID {
			return fmt.Errorf("approval %s belongs to policy %s, not %s", a.ID, a.PolicyID, p.ID)
		}
	}
	if err := s.checkApprovals(approvals); err != nil {
		return err
	}

	next := p.Clone()
	next.Revision++
	s.policies[p.ID] = next
	p.Revision = next.Revision
	s.putApprovals(approvals)
	return nil
}

// GetApproval implements ApprovalRepository.
func (s *MemoryStore) GetApproval(ctx context.Context, id string) (*policy.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, notFound("approval", id)
	}
	return a.Clone(), nil
}

// ListApprovals implements ApprovalRepository.
func (s *MemoryStore) ListApprovals(ctx context.Context, policyID string) ([]*policy.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*policy.Approval{}
	for _, a := range s.approvals {
		if a.PolicyID == policyID {
			out = append(out, a.Clone())
		}
	}
	SortApprovals(out)
	return out, nil
}

// UpdateApprovals implements ApprovalRepository.
func (s *MemoryStore) UpdateApprovals(ctx context.Context, approvals ...*policy.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range approvals {
		if _, ok := s.approvals[a.ID]; !ok {
			return notFound("approval", a.ID)
		}
	}
	if err := s.checkApprovals(approvals); err != nil {
		return err
	}
	s.putApprovals(approvals)
	return nil
}

func (s *MemoryStore) checkApprovals(approvals []*policy.Approval) error {
	for _, a := range approvals {
		stored, ok := s.approvals[a.ID]
		if !ok {
			if a.Revision != 0 {
				return notFound("approval", a.ID)
			}
			continue
		}
		if stored.Revision != a.Revision {
			return &ConflictError{Kind: "approval", ID: a.ID, Base: a.Revision, Current: stored.Revision}
		}
		if err := CheckComments(stored, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) putApprovals(approvals []*policy.Approval) {
	for _, a := range approvals {
		next := a.Clone()
		next.Revision++
		s.approvals[a.ID] = next
		a.Revision = next.Revision
	}
}

// SaveClause implements ClauseRepository.
func (s *MemoryStore) SaveClause(ctx context.Context, c *policy.Clause, baseRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.clauses[c.ID]; ok && stored.Revision != baseRevision {
		return &ConflictError{Kind: "clause", ID: c.ID, Base: baseRevision, Current: stored.Revision}
	}
	next := cloneClause(c)
	next.Revision = baseRevision + 1
	s.clauses[c.ID] = next
	c.Revision = next.Revision
	return nil
}

// GetClause implements ClauseRepository.
func (s *MemoryStore) GetClause(ctx context.Context, id string) (*policy.Clause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clauses[id]
	if !ok {
		return nil, notFound("clause", id)
	}
	return cloneClause(c), nil
}

// ListClauses implements ClauseRepository.
func (s *MemoryStore) ListClauses(ctx context.Context) ([]*policy.Clause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*policy.Clause, 0, len(s.clauses))
	for _, c := range s.clauses {
		out = append(out, cloneClause(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneClause(c *policy.Clause) *policy.Clause {
	out := *c
	out.Rules = append([]policy.SelectionRule(nil), c.Rules...)
	out.DependsOn = append([]string(nil), c.DependsOn...)
	return &out
}
