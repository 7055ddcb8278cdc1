package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/approval"
	"mercator-hq/charter/pkg/policy/library"
	"mercator-hq/charter/pkg/policy/redline"
	"mercator-hq/charter/pkg/policy/selector"
	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/metrics"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

// SystemAuthor signs diffs the engine produces on its own behalf.
const SystemAuthor = "charter"

// DefaultConflictRetries bounds how often ProcessApproval reloads after
// losing a revision race.
const DefaultConflictRetries = 3

// Options carries the optional collaborators of an Engine.
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
	Evidence evidence.Recorder

	// Notifier receives escalations. Defaults to a LogNotifier.
	Notifier approval.Notifier

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string

	// ConflictRetries defaults to DefaultConflictRetries.
	ConflictRetries int

	// DefaultReviewCycleMonths applies to templates that set none.
	// Default: 12
	DefaultReviewCycleMonths int
}

// Engine runs policy operations against a library snapshot and a store.
type Engine struct {
	library  *library.Holder
	store    storage.Store
	selector *selector.Selector
	workflow *approval.Workflow
	notifier approval.Notifier

	logger   *slog.Logger
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	evidence evidence.Recorder

	now         func() time.Time
	newID       func() string
	retries     int
	reviewCycle int
}

// New creates an Engine.
func New(lib *library.Holder, store storage.Store, opts Options) (*Engine, error) {
	if lib == nil {
		return nil, governance.Newf(governance.KindConfiguration, "create engine", "library holder is required")
	}
	if store == nil {
		return nil, governance.Newf(governance.KindConfiguration, "create engine", "store is required")
	}

	logger := logging.Component(opts.Logger, "policy.engine")
	e := &Engine{
		library:     lib,
		store:       store,
		selector:    selector.New(opts.Logger),
		notifier:    opts.Notifier,
		logger:      logger,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		evidence:    opts.Evidence,
		now:         opts.Now,
		newID:       opts.NewID,
		retries:     opts.ConflictRetries,
		reviewCycle: opts.DefaultReviewCycleMonths,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.tracer == nil {
		e.tracer = tracing.Noop()
	}
	if e.notifier == nil {
		e.notifier = approval.NewLogNotifier(opts.Logger)
	}
	if e.retries <= 0 {
		e.retries = DefaultConflictRetries
	}
	if e.reviewCycle <= 0 {
		e.reviewCycle = 12
	}
	e.workflow = approval.New(opts.Logger, approval.WithClock(e.now), approval.WithIDGenerator(e.newID))
	return e, nil
}

// Library returns the current library snapshot.
func (e *Engine) Library() *library.Library { return e.library.Load() }

// Policy returns a stored policy.
func (e *Engine) Policy(ctx context.Context, id string) (*policy.Policy, error) {
	p, err := e.store.GetPolicy(ctx, id)
	if err != nil {
		return nil, e.fail("get policy", "policy", err, governance.KindConfiguration)
	}
	return p, nil
}

// Policies lists stored policies matching filter, sorted by ID.
func (e *Engine) Policies(ctx context.Context, filter storage.PolicyFilter) ([]*policy.Policy, error) {
	ps, err := e.store.ListPolicies(ctx, filter)
	if err != nil {
		return nil, e.fail("list policies", "policy", err, governance.KindConfiguration)
	}
	return ps, nil
}

// classify maps internal errors onto the caller-facing taxonomy. Backend
// failures with no better kind use fallback.
func classify(err error, fallback governance.Kind) governance.Kind {
	if k := governance.KindOf(err); k != "" {
		return k
	}

	var (
		cyclic     *selector.CyclicDependencyError
		unknown    *selector.UnknownClauseError
		invalid    *approval.ValidationError
		outOfOrder *approval.OutOfOrderError
		replay     *redline.ReplayError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return governance.KindNotFound
	case errors.Is(err, storage.ErrRevisionConflict), errors.Is(err, storage.ErrAppendOnlyViolation),
		errors.Is(err, storage.ErrAlreadyExists):
		return governance.KindConflict
	case errors.Is(err, approval.ErrNoWorkflowDefined), errors.As(err, &cyclic), errors.As(err, &unknown):
		return governance.KindConfiguration
	case errors.As(err, &invalid), errors.As(err, &outOfOrder), errors.As(err, &replay),
		errors.Is(err, approval.ErrInvalidTransition):
		return governance.KindValidation
	}
	return fallback
}

// fail wraps err for the caller and counts conflicts.
func (e *Engine) fail(op, entity string, err error, fallback governance.Kind) error {
	kind := classify(err, fallback)
	if kind == governance.KindConflict {
		e.metrics.RecordConflict(entity)
	}
	return governance.Wrap(kind, op, err)
}

// begin starts the span and metrics timer of an operation. The returned
// func must be deferred with the operation's named error.
func (e *Engine) begin(ctx context.Context, metric, span string, b *tracing.AttributeBuilder) (context.Context, func(*error)) {
	start := time.Now()
	ctx, s := e.tracer.Start(ctx, span, b.Build())
	return ctx, func(errp *error) {
		tracing.End(s, *errp)
		e.metrics.RecordOperation(metric, *errp, time.Since(start))
	}
}

// record writes an evidence record. Failures are logged, never returned:
// the governance action has already been persisted.
func (e *Engine) record(ctx context.Context, rec *evidence.Record) {
	if e.evidence == nil {
		return
	}
	if rec.LibrarySource == "" {
		rec.LibrarySource = e.library.Load().Source
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]string{}
	}
	tracing.InjectToMap(ctx, rec.Attributes)
	if err := e.evidence.Record(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "failed to record evidence",
			"kind", rec.Kind,
			"subject_id", rec.SubjectID,
			"error", err,
		)
	}
}
