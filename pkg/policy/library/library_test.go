package library

import (
	"errors"
	"sync"
	"testing"

	"mercator-hq/charter/pkg/policy"
)

func TestNew_DuplicateIDs(t *testing.T) {
	_, err := New(nil, []policy.Clause{
		{ID: "privacy", Title: "Privacy", Body: "a"},
		{ID: "privacy", Title: "Privacy again", Body: "b"},
	}, nil)

	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("New() error = %v, want DuplicateError", err)
	}
	if dup.Kind != "clause" || dup.ID != "privacy" {
		t.Errorf("DuplicateError = %+v", dup)
	}
}

func TestNew_WorkflowModeDefaultsToParallel(t *testing.T) {
	lib, err := New(nil, nil, []policy.WorkflowDefinition{{TemplateID: "ai-use"}})
	if err != nil {
		t.Fatal(err)
	}
	w, ok := lib.Workflow("ai-use")
	if !ok || w.Mode != policy.WorkflowParallel {
		t.Errorf("Workflow() = %+v, %v", w, ok)
	}
}

func TestLibrary_WithClause(t *testing.T) {
	base, err := New(nil, []policy.Clause{
		{ID: "purpose", Title: "Purpose", Body: "original"},
		{ID: "scope", Title: "Scope", Body: "scope"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	next := base.WithClause(policy.Clause{ID: "purpose", Title: "Purpose", Body: "edited", Revision: 1})

	if c, _ := base.Clause("purpose"); c.Body != "original" {
		t.Errorf("base snapshot modified: %q", c.Body)
	}
	if c, _ := next.Clause("purpose"); c.Body != "edited" || c.Revision != 1 {
		t.Errorf("next snapshot clause = %+v", c)
	}
	if base.Stats() != next.Stats() {
		t.Errorf("stats differ: %+v vs %+v", base.Stats(), next.Stats())
	}

	added := next.WithClause(policy.Clause{ID: "ferpa", Title: "FERPA", Body: "records"})
	if added.Stats().Clauses != 3 || next.Stats().Clauses != 2 {
		t.Errorf("clause counts = %d, %d", added.Stats().Clauses, next.Stats().Clauses)
	}

	got := added.Clauses()
	want := []string{"ferpa", "purpose", "scope"}
	for i, c := range got {
		if c.ID != want[i] {
			t.Errorf("Clauses()[%d] = %s, want %s", i, c.ID, want[i])
		}
	}
}

func TestHolder(t *testing.T) {
	h := NewHolder(nil)
	if h.Load() == nil || h.Load().Stats().Clauses != 0 {
		t.Fatal("NewHolder(nil) should serve an empty library")
	}

	first := h.Load()
	lib, _ := New(nil, []policy.Clause{{ID: "a", Title: "A", Body: "a"}}, nil)
	if err := h.Publish(lib); err != nil {
		t.Fatal(err)
	}
	if h.Load() != lib {
		t.Error("Publish() did not replace the snapshot")
	}
	if h.CompareAndSwap(first, Empty()) {
		t.Error("CompareAndSwap() succeeded with a stale snapshot")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cur := h.Load()
				h.CompareAndSwap(cur, cur.WithClause(policy.Clause{ID: "a", Title: "A", Body: "b"}))
			}
		}()
	}
	wg.Wait()

	if c, ok := h.Load().Clause("a"); !ok || c.Body != "b" {
		t.Errorf("final clause = %+v", c)
	}
}
