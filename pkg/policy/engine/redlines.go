package engine

import (
	"context"
	"fmt"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/recorder"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/redline"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

const (
	opRedlines = "generate redlines"
	opApply    = "apply redlines"
)

// GenerateRedlines diffs original's content against updatedContent. The
// disclaimer banner cannot be edited away: it is restored on updatedContent
// before diffing. Diffs are stamped with the next policy version; nothing
// is stored until ApplyRedlines.
func (e *Engine) GenerateRedlines(ctx context.Context, original *policy.Policy, updatedContent, reason, author string) (diffs []policy.Diff, err error) {
	b := tracing.NewAttributeBuilder()
	if original != nil {
		b.WithPolicy(original.ID)
	}
	ctx, done := e.begin(ctx, "generate_redlines", "engine.GenerateRedlines", b)
	defer done(&err)

	if original == nil {
		return nil, governance.Newf(governance.KindValidation, opRedlines, "original policy is required")
	}

	diffs = redline.Diff(original.Content, governance.EnsureDisclaimer(updatedContent), redline.Options{
		Version:   original.Version + 1,
		Rationale: reason,
		Author:    author,
		CreatedAt: e.now().UTC(),
	})
	if diffs == nil {
		diffs = []policy.Diff{}
	}

	for _, d := range diffs {
		e.metrics.RecordRedline(string(d.ChangeType), d.ApprovalRequired)
	}
	ctx = logging.WithPolicyID(ctx, original.ID)
	e.logger.InfoContext(ctx, "redlines generated",
		"diffs", len(diffs),
		"approval_required", redline.AnyRequiresApproval(diffs),
	)
	e.record(ctx, &evidence.Record{
		Kind:        evidence.KindRedlinesGenerated,
		SubjectID:   original.ID,
		OrgID:       original.OrgID,
		Actor:       author,
		Summary:     fmt.Sprintf("%d section changes proposed: %s", len(diffs), reason),
		ContentHash: recorder.HashJSON(diffs),
		Revision:    original.Revision,
	})
	return diffs, nil
}

// ApplyRedlines replays diffs onto the stored policy and appends them to its
// history. baseRevision must match the stored revision. The diffs must all
// carry the next policy version, as GenerateRedlines stamps them.
func (e *Engine) ApplyRedlines(ctx context.Context, policyID string, baseRevision int64, diffs []policy.Diff) (p *policy.Policy, err error) {
	ctx, done := e.begin(ctx, "apply_redlines", "engine.ApplyRedlines",
		tracing.NewAttributeBuilder().WithPolicy(policyID).WithInt(tracing.AttrDiffCount, len(diffs)))
	defer done(&err)

	p, err = e.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, e.fail(opApply, "policy", err, governance.KindConfiguration)
	}
	if p.Revision != baseRevision {
		e.metrics.RecordConflict("policy")
		return nil, governance.Newf(governance.KindConflict, opApply,
			"policy %s is at revision %d, not %d", policyID, p.Revision, baseRevision)
	}

	if err := e.applyDiffs(ctx, p, diffs); err != nil {
		return nil, e.fail(opApply, "policy", err, governance.KindConfiguration)
	}
	return p, nil
}

// applyDiffs validates and replays diffs onto p, then saves it with p's
// revision as the base.
func (e *Engine) applyDiffs(ctx context.Context, p *policy.Policy, diffs []policy.Diff) error {
	if len(diffs) == 0 {
		return governance.Newf(governance.KindValidation, opApply, "no diffs to apply")
	}
	if p.Status == policy.StatusRejected {
		return governance.Newf(governance.KindValidation, opApply, "policy %s was rejected", p.ID)
	}
	want := p.Version + 1
	for _, d := range diffs {
		if d.Version != want {
			return governance.Newf(governance.KindValidation, opApply,
				"diff %s is for version %d; policy %s expects version %d", d.ID, d.Version, p.ID, want)
		}
	}

	content, err := redline.Replay(p.Content, diffs)
	if err != nil {
		return err
	}
	if !governance.HasDisclaimer(content) {
		return governance.Newf(governance.KindValidation, opApply, "changes would remove the disclaimer")
	}

	p.Content = content
	p.Version = want
	p.DiffHistory = append(p.DiffHistory, diffs...)
	p.UpdatedAt = e.now().UTC()
	if err := e.store.UpdatePolicy(ctx, p); err != nil {
		return err
	}

	ctx = logging.WithPolicyID(ctx, p.ID)
	e.logger.InfoContext(ctx, "redlines applied",
		"version", p.Version,
		"revision", p.Revision,
		"diffs", len(diffs),
	)
	e.record(ctx, &evidence.Record{
		Kind:        evidence.KindRedlinesApplied,
		SubjectID:   p.ID,
		OrgID:       p.OrgID,
		Actor:       diffs[0].Author,
		Summary:     fmt.Sprintf("applied %d section changes, now version %d", len(diffs), p.Version),
		ContentHash: recorder.HashString(p.Content),
		Revision:    p.Revision,
	})
	return nil
}
