package query

import (
	"fmt"

	"mercator-hq/charter/pkg/evidence"
)

const (
	// DefaultLimit applies when a query sets no limit.
	DefaultLimit = 100

	// MaxLimit caps the records returned by one query.
	MaxLimit = 10000
)

// Limits bounds query pagination. The zero value uses the package defaults.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) resolve() Limits {
	if l.Default <= 0 {
		l.Default = DefaultLimit
	}
	if l.Max <= 0 {
		l.Max = MaxLimit
	}
	return l
}

// Validate checks q against the package limits.
func Validate(q *evidence.Query) error {
	return Limits{}.Validate(q)
}

// Validate checks q and returns a *evidence.QueryError for the first invalid
// parameter.
func (l Limits) Validate(q *evidence.Query) error {
	l = l.resolve()

	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > l.Max {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", l.Max, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return evidence.NewQueryError(q, fmt.Errorf("invalid kind: %s", q.Kind))
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	switch q.Outcome {
	case "", evidence.OutcomeSuccess, evidence.OutcomeError:
	default:
		return evidence.NewQueryError(q, fmt.Errorf("invalid outcome: %s (must be 'success' or 'error')", q.Outcome))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	return nil
}

// ApplyDefaults fills the package defaults into q.
func ApplyDefaults(q *evidence.Query) {
	Limits{}.ApplyDefaults(q)
}

// ApplyDefaults fills the default limit and a descending sort into q.
func (l Limits) ApplyDefaults(q *evidence.Query) {
	l = l.resolve()
	if q.Limit == 0 {
		q.Limit = l.Default
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}
