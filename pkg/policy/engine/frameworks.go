package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/framework"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/redline"
	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

const opAutoUpdate = "apply framework update"

// UpdatesSectionTitle heads the section that framework updates are logged
// under. Its slug contains "compliance", so every change to it needs
// approval.
const UpdatesSectionTitle = "Compliance Framework Updates"

// Framework update outcomes, as reported to metrics.
const (
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// AutoUpdatePoliciesFromFramework records update in every auto-update policy
// that references its framework. Each policy is handled independently: a
// failure, including a panic, is reported in that policy's result and the
// batch continues. A policy that already records this framework version is
// skipped. The returned error is non-nil only when the update is invalid or
// the policies cannot be listed.
func (e *Engine) AutoUpdatePoliciesFromFramework(ctx context.Context, update framework.Update) (results []policy.UpdateResult, err error) {
	ctx, done := e.begin(ctx, "framework_update", "engine.AutoUpdatePoliciesFromFramework",
		tracing.NewAttributeBuilder().WithFramework(update.FrameworkID))
	defer done(&err)

	if err := update.Validate(); err != nil {
		return nil, governance.Wrap(governance.KindValidation, opAutoUpdate, err)
	}

	autoUpdate := true
	policies, err := e.store.ListPolicies(ctx, storage.PolicyFilter{Framework: update.FrameworkID, AutoUpdate: &autoUpdate})
	if err != nil {
		return nil, e.fail(opAutoUpdate, "policy", err, governance.KindConfiguration)
	}

	results = make([]policy.UpdateResult, 0, len(policies))
	for _, p := range policies {
		res := e.updateOne(ctx, p, update)
		outcome := outcomeUpdated
		switch {
		case !res.Success:
			outcome = outcomeFailed
		case res.Skipped:
			outcome = outcomeSkipped
		}
		e.metrics.RecordFrameworkUpdate(update.FrameworkID, outcome)
		results = append(results, res)
	}

	e.logger.InfoContext(ctx, "framework update applied",
		"framework", update.FrameworkID,
		"version", update.Version,
		"policies", len(results),
	)
	return results, nil
}

func (e *Engine) updateOne(ctx context.Context, p *policy.Policy, update framework.Update) (res policy.UpdateResult) {
	res.PolicyID = p.ID
	ctx = logging.WithPolicyID(ctx, p.ID)

	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "framework update panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			res = policy.UpdateResult{
				PolicyID: p.ID,
				Error:    governance.Newf(governance.KindBatch, opAutoUpdate, "panic: %v", r).Error(),
			}
		}
		e.recordUpdate(ctx, p, update, res)
	}()

	updated, changed := withUpdateEntry(p.Content, update)
	if !changed {
		res.Success = true
		res.Skipped = true
		res.Diffs = []policy.Diff{}
		return res
	}

	diffs := redline.Diff(p.Content, updated, redline.Options{
		Version:             p.Version + 1,
		Rationale:           fmt.Sprintf("%s %s framework update", update.FrameworkID, update.Version),
		SourceJustification: update.Description,
		Author:              SystemAuthor,
		CreatedAt:           e.now().UTC(),
	})
	if err := e.applyDiffs(ctx, p, diffs); err != nil {
		res.Error = e.fail(opAutoUpdate, "policy", err, governance.KindBatch).Error()
		e.logger.WarnContext(ctx, "framework update failed for policy", "error", err)
		return res
	}

	res.Success = true
	res.Diffs = diffs
	res.RequiresApproval = redline.AnyRequiresApproval(diffs)
	return res
}

func (e *Engine) recordUpdate(ctx context.Context, p *policy.Policy, update framework.Update, res policy.UpdateResult) {
	summary := fmt.Sprintf("%s %s recorded", update.FrameworkID, update.Version)
	switch {
	case res.Skipped:
		summary = fmt.Sprintf("%s %s already recorded", update.FrameworkID, update.Version)
	case !res.Success:
		summary = fmt.Sprintf("%s %s not applied", update.FrameworkID, update.Version)
	}
	e.record(ctx, &evidence.Record{
		Kind:      evidence.KindFrameworkUpdate,
		SubjectID: p.ID,
		OrgID:     p.OrgID,
		Actor:     SystemAuthor,
		Summary:   summary,
		Error:     res.Error,
		Revision:  p.Revision,
		Attributes: map[string]string{
			"framework":         update.FrameworkID,
			"framework_version": update.Version,
			"requires_approval": fmt.Sprint(res.RequiresApproval),
		},
	})
}

// updateEntryPrefix identifies the entry of one framework version.
func updateEntryPrefix(update framework.Update) string {
	return fmt.Sprintf("- **%s %s**", update.FrameworkID, update.Version)
}

func updateEntry(update framework.Update) string {
	var b strings.Builder
	b.WriteString(updateEntryPrefix(update))
	if !update.EffectiveDate.IsZero() {
		fmt.Fprintf(&b, " (effective %s)", update.EffectiveDate.Format("2006-01-02"))
	}
	if d := strings.TrimSpace(update.Description); d != "" {
		b.WriteString(": ")
		b.WriteString(strings.TrimRight(d, "."))
		b.WriteString(".")
	}
	if len(update.AffectedControls) > 0 {
		b.WriteString(" Affected controls: ")
		b.WriteString(strings.Join(update.AffectedControls, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// withUpdateEntry adds the entry for update to the updates section of
// content, creating the section at the end if needed. It reports false when
// the entry is already present.
func withUpdateEntry(content string, update framework.Update) (string, bool) {
	sectionID := redline.Slug(UpdatesSectionTitle)
	entry := updateEntry(update)

	sections := redline.ParseSections(content)
	for i, s := range sections {
		if s.ID != sectionID {
			continue
		}
		if strings.Contains(s.Text, updateEntryPrefix(update)) {
			return content, false
		}
		body := strings.TrimRight(s.Text, "\n")
		trailing := s.Text[len(body):]
		if trailing == "" {
			trailing = "\n"
		}
		sections[i].Text = body + "\n" + entry + trailing
		var b strings.Builder
		for _, sec := range sections {
			b.WriteString(sec.Text)
		}
		return b.String(), true
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "## " + UpdatesSectionTitle + "\n\n" + entry + "\n", true
}
