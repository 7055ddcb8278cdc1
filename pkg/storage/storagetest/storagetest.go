// Package storagetest provides a conformance suite that every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/storage"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises the repository contract against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGetPolicy", testCreateAndGetPolicy},
		{"ListPoliciesFilter", testListPoliciesFilter},
		{"UpdatePolicyRevision", testUpdatePolicyRevision},
		{"DiffHistoryAppendOnly", testDiffHistoryAppendOnly},
		{"ApprovalsWithPolicy", testApprovalsWithPolicy},
		{"ApprovalCommentsAppendOnly", testApprovalCommentsAppendOnly},
		{"FailedUpdateChangesNothing", testFailedUpdateChangesNothing},
		{"ConcurrentUpdates", testConcurrentUpdates},
		{"ClauseRevisions", testClauseRevisions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newPolicy(id string, frameworks ...string) *policy.Policy {
	return &policy.Policy{
		ID:         id,
		OrgID:      "district-7",
		TemplateID: "ai-use",
		Title:      "AI Use Policy",
		Status:     policy.StatusDraft,
		Content:    "# AI Use\n",
		Frameworks: frameworks,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newApproval(id, policyID string, role policy.Role) *policy.Approval {
	return &policy.Approval{
		ID:                id,
		PolicyID:          policyID,
		Role:              role,
		Step:              1,
		RequiredApprovals: []policy.Role{role},
		CurrentApprovals:  []policy.Role{},
		CreatedAt:         now,
	}
}

func mustCreate(t *testing.T, s storage.Store, p *policy.Policy) {
	t.Helper()
	if err := s.CreatePolicy(context.Background(), p); err != nil {
		t.Fatalf("CreatePolicy(%s) error: %v", p.ID, err)
	}
}

func testCreateAndGetPolicy(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := newPolicy("p1", "nist-ai-rmf")
	p.FillableFields = map[string]string{"superintendentName": ""}
	mustCreate(t, s, p)

	if p.Revision != 1 {
		t.Errorf("Revision after create = %d, want 1", p.Revision)
	}
	if err := s.CreatePolicy(ctx, newPolicy("p1")); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("duplicate CreatePolicy() error = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetPolicy(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPolicy() error: %v", err)
	}
	if got.Title != p.Title || got.Revision != 1 || !got.CreatedAt.Equal(now) || !got.HasFramework("nist-ai-rmf") {
		t.Errorf("GetPolicy() = %+v", got)
	}
	if _, ok := got.FillableFields["superintendentName"]; !ok {
		t.Error("fillable fields lost")
	}

	// Returned values are copies.
	got.Title = "mutated"
	again, _ := s.GetPolicy(ctx, "p1")
	if again.Title != p.Title {
		t.Error("GetPolicy() returned shared state")
	}

	if _, err := s.GetPolicy(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetPolicy(missing) error = %v, want ErrNotFound", err)
	}
}

func testListPoliciesFilter(t *testing.T, s storage.Store) {
	ctx := context.Background()

	a := newPolicy("a", "nist-ai-rmf")
	a.AutoUpdate = true
	b := newPolicy("b", "us-doe-ai")
	b.AutoUpdate = true
	c := newPolicy("c", "nist-ai-rmf")
	c.Status = policy.StatusApproved
	for _, p := range []*policy.Policy{c, b, a} {
		mustCreate(t, s, p)
	}

	yes := true
	tests := []struct {
		name   string
		filter storage.PolicyFilter
		want   []string
	}{
		{"all", storage.PolicyFilter{}, []string{"a", "b", "c"}},
		{"framework", storage.PolicyFilter{Framework: "nist-ai-rmf"}, []string{"a", "c"}},
		{"auto update and framework", storage.PolicyFilter{Framework: "nist-ai-rmf", AutoUpdate: &yes}, []string{"a"}},
		{"status", storage.PolicyFilter{Status: policy.StatusApproved}, []string{"c"}},
		{"org", storage.PolicyFilter{OrgID: "other"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListPolicies(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListPolicies() returned %d policies, want %d", len(got), len(tt.want))
			}
			for i, p := range got {
				if p.ID != tt.want[i] {
					t.Errorf("ListPolicies()[%d] = %s, want %s", i, p.ID, tt.want[i])
				}
			}
		})
	}
}

func testUpdatePolicyRevision(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mustCreate(t, s, newPolicy("p1"))

	first, _ := s.GetPolicy(ctx, "p1")
	second, _ := s.GetPolicy(ctx, "p1")

	first.Content = "# AI Use\n\nEdited.\n"
	if err := s.UpdatePolicy(ctx, first); err != nil {
		t.Fatalf("UpdatePolicy() error: %v", err)
	}
	if first.Revision != 2 {
		t.Errorf("Revision after update = %d, want 2", first.Revision)
	}

	second.Title = "stale writer"
	err := s.UpdatePolicy(ctx, second)
	if !errors.Is(err, storage.ErrRevisionConflict) {
		t.Fatalf("stale UpdatePolicy() error = %v, want ErrRevisionConflict", err)
	}
	var conflict *storage.ConflictError
	if !errors.As(err, &conflict) || conflict.Base != 1 || conflict.Current != 2 {
		t.Errorf("ConflictError = %+v", conflict)
	}
	if second.Revision != 1 {
		t.Error("failed update changed the caller's revision")
	}

	if err := s.UpdatePolicy(ctx, newPolicy("ghost")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdatePolicy(ghost) error = %v, want ErrNotFound", err)
	}
}

func testDiffHistoryAppendOnly(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := newPolicy("p1")
	p.DiffHistory = []policy.Diff{{ID: "d1", Version: 1, ChangeType: policy.ChangeAddition, SectionID: "scope", NewText: "## Scope\n"}}
	mustCreate(t, s, p)

	grown, _ := s.GetPolicy(ctx, "p1")
	grown.DiffHistory = append(grown.DiffHistory, policy.Diff{ID: "d2", Version: 2, ChangeType: policy.ChangeDeletion, SectionID: "scope", OriginalText: "## Scope\n"})
	if err := s.UpdatePolicy(ctx, grown); err != nil {
		t.Fatalf("appending UpdatePolicy() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *policy.Policy)
	}{
		{"truncate", func(p *policy.Policy) { p.DiffHistory = p.DiffHistory[:1] }},
		{"rewrite", func(p *policy.Policy) { p.DiffHistory[0].NewText = "## Rewritten\n" }},
		{"reorder", func(p *policy.Policy) {
			p.DiffHistory[0], p.DiffHistory[1] = p.DiffHistory[1], p.DiffHistory[0]
		}},
		{"drop trail", func(p *policy.Policy) { p.ApprovalTrail = nil }},
	}

	// Seed one trail entry so "drop trail" has something to drop.
	seeded, _ := s.GetPolicy(ctx, "p1")
	seeded.ApprovalTrail = append(seeded.ApprovalTrail, *newApproval("a1", "p1", policy.RoleSuperintendent))
	if err := s.UpdatePolicy(ctx, seeded); err != nil {
		t.Fatal(err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := s.GetPolicy(ctx, "p1")
			tt.mutate(p)
			if err := s.UpdatePolicy(ctx, p); !errors.Is(err, storage.ErrAppendOnlyViolation) {
				t.Errorf("UpdatePolicy() error = %v, want ErrAppendOnlyViolation", err)
			}
		})
	}
}

func testApprovalsWithPolicy(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := newPolicy("p1")
	mustCreate(t, s, p)

	a1 := newApproval("a1", "p1", policy.RoleTechnologyDirector)
	a2 := newApproval("a2", "p1", policy.RoleSuperintendent)
	a2.Step = 2
	p.Status = policy.StatusReview
	if err := s.UpdatePolicy(ctx, p, a2, a1); err != nil {
		t.Fatalf("UpdatePolicy() with new approvals error: %v", err)
	}
	if a1.Revision != 1 || a2.Revision != 1 || p.Revision != 2 {
		t.Errorf("revisions = a1:%d a2:%d p:%d", a1.Revision, a2.Revision, p.Revision)
	}

	list, err := s.ListApprovals(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "a1" || list[1].ID != "a2" {
		t.Fatalf("ListApprovals() = %+v", list)
	}

	acted := list[0]
	acted.Action = policy.ActionApprove
	acted.Comments = append(acted.Comments, policy.Comment{Author: "Dana", Role: acted.Role, Action: policy.ActionApprove, Text: "ok", CreatedAt: now})
	if err := s.UpdateApprovals(ctx, acted); err != nil {
		t.Fatalf("UpdateApprovals() error: %v", err)
	}
	got, _ := s.GetApproval(ctx, "a1")
	if got.Action != policy.ActionApprove || got.Revision != 2 || len(got.Comments) != 1 {
		t.Errorf("GetApproval() = %+v", got)
	}

	// A stale approval rolls back the whole update, including the policy.
	stale := newApproval("a1", "p1", policy.RoleTechnologyDirector)
	stale.Revision = 1
	p.Title = "should not be saved"
	if err := s.UpdatePolicy(ctx, p, stale); !errors.Is(err, storage.ErrRevisionConflict) {
		t.Fatalf("UpdatePolicy() with stale approval error = %v", err)
	}
	if cur, _ := s.GetPolicy(ctx, "p1"); cur.Title == "should not be saved" || cur.Revision != 2 {
		t.Errorf("policy changed by a failed update: %+v", cur)
	}

	foreign := newApproval("x", "other", policy.RoleSuperintendent)
	if err := s.UpdatePolicy(ctx, p, foreign); err == nil {
		t.Error("UpdatePolicy() accepted an approval of another policy")
	}

	if err := s.UpdateApprovals(ctx, newApproval("ghost", "p1", policy.RoleBoardMember)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateApprovals(ghost) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetApproval(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetApproval(ghost) error = %v, want ErrNotFound", err)
	}
}

func testApprovalCommentsAppendOnly(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := newPolicy("p1")
	mustCreate(t, s, p)

	a := newApproval("a1", "p1", policy.RolePrivacyOfficer)
	a.Comments = []policy.Comment{{Author: "Lee", Role: a.Role, Action: policy.ActionRequestChanges, Text: "tighten retention", CreatedAt: now}}
	if err := s.UpdatePolicy(ctx, p, a); err != nil {
		t.Fatal(err)
	}

	rewritten, _ := s.GetApproval(ctx, "a1")
	rewritten.Comments[0].Text = "never mind"
	if err := s.UpdateApprovals(ctx, rewritten); !errors.Is(err, storage.ErrAppendOnlyViolation) {
		t.Errorf("rewriting a comment error = %v, want ErrAppendOnlyViolation", err)
	}

	dropped, _ := s.GetApproval(ctx, "a1")
	dropped.Comments = nil
	if err := s.UpdateApprovals(ctx, dropped); !errors.Is(err, storage.ErrAppendOnlyViolation) {
		t.Errorf("dropping comments error = %v, want ErrAppendOnlyViolation", err)
	}
}

func testFailedUpdateChangesNothing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := newPolicy("p1")
	p.DiffHistory = []policy.Diff{{ID: "d1", Version: 1, ChangeType: policy.ChangeAddition, SectionID: "a"}}
	mustCreate(t, s, p)

	bad, _ := s.GetPolicy(ctx, "p1")
	bad.DiffHistory = nil
	bad.Content = "changed"
	_ = s.UpdatePolicy(ctx, bad)

	cur, _ := s.GetPolicy(ctx, "p1")
	if cur.Content != p.Content || cur.Revision != 1 || len(cur.DiffHistory) != 1 {
		t.Errorf("policy after failed update = %+v", cur)
	}
}

func testConcurrentUpdates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	mustCreate(t, s, newPolicy("p1"))

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	base, _ := s.GetPolicy(ctx, "p1")
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := base.Clone()
			p.Title = "writer"
			err := s.UpdatePolicy(ctx, p)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, storage.ErrRevisionConflict) {
				t.Errorf("writer %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d writers succeeded from the same base revision, want 1", succeeded)
	}
	if cur, _ := s.GetPolicy(ctx, "p1"); cur.Revision != 2 {
		t.Errorf("final revision = %d, want 2", cur.Revision)
	}
}

func testClauseRevisions(t *testing.T, s storage.Store) {
	ctx := context.Background()

	c := &policy.Clause{
		ID:    "privacy",
		Title: "Student Privacy",
		Body:  "Student data stays in district systems.",
		Rules: []policy.SelectionRule{{Field: policy.FieldOrganizationType, Operator: policy.OpIn, Values: []string{"K12", "District"}}},
	}
	if err := s.SaveClause(ctx, c, 0); err != nil {
		t.Fatalf("first SaveClause() error: %v", err)
	}
	if c.Revision != 1 {
		t.Errorf("Revision = %d, want 1", c.Revision)
	}

	edit := *c
	edit.Body = "Student data never leaves district systems."
	if err := s.SaveClause(ctx, &edit, 1); err != nil {
		t.Fatalf("second SaveClause() error: %v", err)
	}

	stale := *c
	stale.Body = "stale"
	if err := s.SaveClause(ctx, &stale, 1); !errors.Is(err, storage.ErrRevisionConflict) {
		t.Errorf("stale SaveClause() error = %v, want ErrRevisionConflict", err)
	}

	got, err := s.GetClause(ctx, "privacy")
	if err != nil {
		t.Fatal(err)
	}
	if got.Revision != 2 || got.Body != edit.Body || len(got.Rules) != 1 || len(got.Rules[0].Values) != 2 {
		t.Errorf("GetClause() = %+v", got)
	}

	// A library clause that already carries a revision keeps counting from it.
	versioned := &policy.Clause{ID: "ferpa", Title: "FERPA", Body: "Records.", Revision: 4}
	if err := s.SaveClause(ctx, versioned, 4); err != nil || versioned.Revision != 5 {
		t.Errorf("SaveClause(ferpa) = %v, revision %d", err, versioned.Revision)
	}

	list, err := s.ListClauses(ctx)
	if err != nil || len(list) != 2 || list[0].ID != "ferpa" {
		t.Errorf("ListClauses() = %v, %v", list, err)
	}

	if _, err := s.GetClause(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetClause(ghost) error = %v, want ErrNotFound", err)
	}
}
