package library

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/selector"
)

// Severity grades a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one lint finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	Message  string   `json:"message"`
}

// String formats the issue for terminals.
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s %q: %s", i.Severity, i.Kind, i.ID, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateClause checks a single clause before it is saved.
func ValidateClause(c *policy.Clause) error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("clause id is required"))
	}
	if strings.TrimSpace(c.Title) == "" {
		errs = append(errs, errors.New("clause title is required"))
	}
	if strings.TrimSpace(c.Body) == "" {
		errs = append(errs, errors.New("clause body must not be empty"))
	}
	for i, r := range c.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
		}
	}
	for _, dep := range c.DependsOn {
		if dep == c.ID {
			errs = append(errs, errors.New("clause depends on itself"))
		}
	}
	return errors.Join(errs...)
}

// Lint checks a library for references and definitions that would fail at
// generation or approval time. Issues are sorted by kind, ID and message.
func Lint(lib *Library) []Issue {
	var issues []Issue
	add := func(sev Severity, kind, id, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Kind: kind, ID: id, Message: fmt.Sprintf(format, args...)})
	}

	for _, c := range lib.Clauses() {
		if err := ValidateClause(c); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				add(SeverityError, "clause", c.ID, "%s", line)
			}
		}
		for _, dep := range c.DependsOn {
			if _, ok := lib.Clause(dep); !ok {
				add(SeverityWarning, "clause", c.ID, "depends on unknown clause %q", dep)
			}
		}
	}

	if _, err := selector.Order(lib.Clauses()); err != nil {
		var cyc *selector.CyclicDependencyError
		if errors.As(err, &cyc) {
			for _, id := range cyc.Clauses {
				add(SeverityError, "clause", id, "part of a dependency cycle")
			}
		}
	}

	for _, t := range lib.Templates() {
		if strings.TrimSpace(t.Content) == "" {
			add(SeverityError, "template", t.ID, "content is empty")
		}
		if t.ReviewCycleMonths < 0 {
			add(SeverityError, "template", t.ID, "review_cycle_months must not be negative")
		}
		for _, id := range t.AvailableClauses {
			if _, ok := lib.Clause(id); !ok {
				add(SeverityError, "template", t.ID, "references unknown clause %q", id)
			}
		}
		if _, ok := lib.Workflow(t.ID); !ok {
			add(SeverityWarning, "template", t.ID, "no approval workflow registered")
		}
	}

	for _, w := range lib.Workflows() {
		issues = append(issues, lintWorkflow(lib, w)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Message < b.Message
	})
	return issues
}

func lintWorkflow(lib *Library, w *policy.WorkflowDefinition) []Issue {
	var issues []Issue
	add := func(format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Kind: "workflow", ID: w.TemplateID, Message: fmt.Sprintf(format, args...)})
	}

	if _, ok := lib.Template(w.TemplateID); !ok {
		add("registered for unknown template")
	}
	switch w.Mode {
	case policy.WorkflowParallel, policy.WorkflowSequential:
	default:
		add("unknown mode %q", w.Mode)
	}
	if len(w.RequiredRoles()) == 0 {
		add("has no required steps")
	}

	seen := map[policy.Role]bool{}
	for _, s := range w.Steps {
		if !s.Role.Valid() {
			add("unknown role %q", s.Role)
		}
		if seen[s.Role] {
			add("role %q listed twice", s.Role)
		}
		seen[s.Role] = true
	}

	for _, e := range w.Escalations {
		if e.AfterDays <= 0 {
			add("escalation after_days must be positive")
		}
		if !e.NotifyRole.Valid() {
			add("escalation notifies unknown role %q", e.NotifyRole)
		}
	}
	return issues
}
