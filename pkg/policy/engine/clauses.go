package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/recorder"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/library"
	"mercator-hq/charter/pkg/policy/selector"
	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

const opSaveClause = "save clause"

// SaveClause validates and stores an edit of a clause, then publishes a
// library snapshot containing it. baseRevision must equal the current
// revision of the clause: the stored edit when there is one, otherwise the
// library clause (0 for a new clause). The saved clause carries its new
// revision.
func (e *Engine) SaveClause(ctx context.Context, clause policy.Clause, baseRevision int64) (saved *policy.Clause, err error) {
	ctx, done := e.begin(ctx, "save_clause", "engine.SaveClause",
		tracing.NewAttributeBuilder().WithClause(clause.ID))
	defer done(&err)

	if err := library.ValidateClause(&clause); err != nil {
		e.metrics.RecordClauseSave("invalid")
		return nil, governance.Wrap(governance.KindValidation, opSaveClause, err)
	}

	lib := e.library.Load()
	if _, err := selector.Order(lib.WithClause(clause).Clauses()); err != nil {
		e.metrics.RecordClauseSave("invalid")
		return nil, governance.Wrap(governance.KindValidation, opSaveClause, err)
	}
	for _, dep := range clause.DependsOn {
		if _, ok := lib.Clause(dep); !ok {
			e.logger.WarnContext(ctx, "clause depends on a clause the library does not define",
				"clause_id", clause.ID,
				"depends_on", dep,
			)
		}
	}

	if err := e.checkFirstEdit(ctx, lib, clause.ID, baseRevision); err != nil {
		e.metrics.RecordClauseSave("conflict")
		return nil, e.fail(opSaveClause, "clause", err, governance.KindConfiguration)
	}

	c := clause
	if err := e.store.SaveClause(ctx, &c, baseRevision); err != nil {
		e.metrics.RecordClauseSave("conflict")
		return nil, e.fail(opSaveClause, "clause", err, governance.KindConfiguration)
	}
	e.publishClause(c)
	e.metrics.RecordClauseSave("saved")

	e.logger.InfoContext(ctx, "clause saved", "clause_id", c.ID, "revision", c.Revision)
	e.record(ctx, &evidence.Record{
		Kind:        evidence.KindClauseSaved,
		SubjectID:   c.ID,
		Summary:     fmt.Sprintf("clause %q saved at revision %d", c.Title, c.Revision),
		ContentHash: recorder.HashString(c.Body),
		Revision:    c.Revision,
	})
	return &c, nil
}

// checkFirstEdit compares baseRevision with the library clause when the store
// holds no edit of it yet. Once an edit is stored the store checks the base.
func (e *Engine) checkFirstEdit(ctx context.Context, lib *library.Library, id string, baseRevision int64) error {
	_, err := e.store.GetClause(ctx, id)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}
	var current int64
	if c, ok := lib.Clause(id); ok {
		current = c.Revision
	}
	if baseRevision != current {
		return &storage.ConflictError{Kind: "clause", ID: id, Base: baseRevision, Current: current}
	}
	return nil
}

func (e *Engine) publishClause(c policy.Clause) {
	for {
		old := e.library.Load()
		if e.library.CompareAndSwap(old, old.WithClause(c)) {
			return
		}
	}
}

// ClauseOverlay publishes library snapshots with the stored clause edits
// applied on top, so a reload from disk or git does not revert them. It
// implements library.Publisher and is the target given to library.Watcher.
type ClauseOverlay struct {
	holder  *library.Holder
	clauses storage.ClauseRepository
	timeout time.Duration
}

// NewClauseOverlay creates an overlay publishing to holder.
func NewClauseOverlay(holder *library.Holder, clauses storage.ClauseRepository) *ClauseOverlay {
	return &ClauseOverlay{holder: holder, clauses: clauses, timeout: 5 * time.Second}
}

// Publish implements library.Publisher.
func (o *ClauseOverlay) Publish(lib *library.Library) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	next, err := o.Apply(ctx, lib)
	if err != nil {
		return err
	}
	o.holder.Store(next)
	return nil
}

// Apply returns lib with every stored clause edit applied.
func (o *ClauseOverlay) Apply(ctx context.Context, lib *library.Library) (*library.Library, error) {
	stored, err := o.clauses.ListClauses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored clauses: %w", err)
	}
	for _, c := range stored {
		lib = lib.WithClause(*c)
	}
	return lib, nil
}
