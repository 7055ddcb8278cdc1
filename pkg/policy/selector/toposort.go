package selector

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"mercator-hq/charter/pkg/policy"
)

// CyclicDependencyError reports clauses whose dependencies form a cycle.
type CyclicDependencyError struct {
	// Clauses lists the IDs that could not be ordered, sorted.
	Clauses []string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic clause dependency among [%s]", strings.Join(e.Clauses, ", "))
}

// Order sorts clauses so that every clause comes after the clauses it depends
// on. Among clauses that are ready at the same time, lower Priority comes first
// and ID breaks ties, so the result is deterministic. Dependencies on clauses
// outside the input set are ignored.
func Order(clauses []*policy.Clause) ([]*policy.Clause, error) {
	byID := make(map[string]*policy.Clause, len(clauses))
	for _, c := range clauses {
		byID[c.ID] = c
	}

	indegree := make(map[string]int, len(clauses))
	dependents := make(map[string][]string, len(clauses))
	for _, c := range clauses {
		indegree[c.ID] += 0
		seen := make(map[string]bool, len(c.DependsOn))
		for _, dep := range c.DependsOn {
			if _, ok := byID[dep]; !ok || seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[c.ID]++
			dependents[dep] = append(dependents[dep], c.ID)
		}
	}

	ready := &clauseHeap{}
	for _, c := range clauses {
		if indegree[c.ID] == 0 {
			heap.Push(ready, c)
		}
	}

	ordered := make([]*policy.Clause, 0, len(clauses))
	for ready.Len() > 0 {
		c := heap.Pop(ready).(*policy.Clause)
		ordered = append(ordered, c)
		for _, dependent := range dependents[c.ID] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				heap.Push(ready, byID[dependent])
			}
		}
	}

	if len(ordered) != len(byID) {
		var stuck []string
		for id, n := range indegree {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, &CyclicDependencyError{Clauses: stuck}
	}

	return ordered, nil
}

// clauseHeap is a min-heap on (Priority, ID).
type clauseHeap []*policy.Clause

func (h clauseHeap) Len() int { return len(h) }

func (h clauseHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].ID < h[j].ID
}

func (h clauseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *clauseHeap) Push(x any) { *h = append(*h, x.(*policy.Clause)) }

func (h *clauseHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
