// Package selector picks the clauses of a template that apply to an
// organization profile and orders them for assembly.
package selector

import (
	"fmt"
	"log/slog"

	"mercator-hq/charter/pkg/policy"
)

// ClauseSource resolves clause IDs. library.Library implements it.
type ClauseSource interface {
	Clause(id string) (*policy.Clause, bool)
}

// UnknownClauseError reports a template that lists a clause the library does
// not contain.
type UnknownClauseError struct {
	TemplateID string
	ClauseID   string
}

// Error implements the error interface.
func (e *UnknownClauseError) Error() string {
	return fmt.Sprintf("template %q references unknown clause %q", e.TemplateID, e.ClauseID)
}

// Selector filters and orders clauses.
type Selector struct {
	logger *slog.Logger
}

// New creates a Selector. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{logger: logger.With("component", "policy.selector")}
}

// Select returns the template's clauses whose rules all pass for the profile,
// ordered by dependency then priority.
func (s *Selector) Select(tmpl *policy.Template, profile *policy.OrganizationProfile, clauses ClauseSource) ([]*policy.Clause, error) {
	var selected []*policy.Clause
	seen := make(map[string]bool, len(tmpl.AvailableClauses))

	for _, id := range tmpl.AvailableClauses {
		if seen[id] {
			continue
		}
		seen[id] = true

		clause, ok := clauses.Clause(id)
		if !ok {
			return nil, &UnknownClauseError{TemplateID: tmpl.ID, ClauseID: id}
		}

		if !EvaluateRules(clause.Rules, profile) {
			s.logger.Debug("clause excluded",
				"template_id", tmpl.ID,
				"clause_id", id,
			)
			continue
		}
		selected = append(selected, clause)
	}

	ordered, err := Order(selected)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("clauses selected",
		"template_id", tmpl.ID,
		"available", len(tmpl.AvailableClauses),
		"selected", len(ordered),
	)

	return ordered, nil
}
