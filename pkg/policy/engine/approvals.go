package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/charter/pkg/evidence"
	"mercator-hq/charter/pkg/evidence/recorder"
	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
	"mercator-hq/charter/pkg/policy/approval"
	"mercator-hq/charter/pkg/storage"
	"mercator-hq/charter/pkg/telemetry/logging"
	"mercator-hq/charter/pkg/telemetry/tracing"
)

const (
	opInitiate    = "initiate approval workflow"
	opProcess     = "process approval"
	opEscalations = "check escalations"
	opStatus      = "get approval status"
)

// InitiateApprovalWorkflow moves a draft policy into review and creates one
// approval per required role of its template's workflow.
func (e *Engine) InitiateApprovalWorkflow(ctx context.Context, policyID string) (err error) {
	ctx, done := e.begin(ctx, "initiate_workflow", "engine.InitiateApprovalWorkflow",
		tracing.NewAttributeBuilder().WithPolicy(policyID))
	defer done(&err)

	p, err := e.store.GetPolicy(ctx, policyID)
	if err != nil {
		return e.fail(opInitiate, "policy", err, governance.KindConfiguration)
	}

	def, _ := e.library.Load().Workflow(p.TemplateID)
	approvals, err := e.workflow.Initiate(p, def)
	if err != nil {
		return e.fail(opInitiate, "policy", err, governance.KindConfiguration)
	}
	if err := e.store.UpdatePolicy(ctx, p, approvals...); err != nil {
		return e.fail(opInitiate, "policy", err, governance.KindConfiguration)
	}

	ctx = logging.WithPolicyID(ctx, p.ID)
	e.logger.InfoContext(ctx, "policy submitted for review", "approvals", len(approvals))
	roles := make([]string, len(approvals))
	for i, a := range approvals {
		roles[i] = string(a.Role)
	}
	e.record(ctx, &evidence.Record{
		Kind:      evidence.KindWorkflowInitiated,
		SubjectID: p.ID,
		OrgID:     p.OrgID,
		Summary:   fmt.Sprintf("%s workflow started with %d approvals", def.Mode, len(approvals)),
		Revision:  p.Revision,
		Attributes: map[string]string{
			"roles": fmt.Sprint(roles),
		},
	})
	return nil
}

// ProcessApproval records approver's action on one approval of a policy in
// review. Invalid requests leave the policy and approvals unchanged. When
// another writer saves first, the policy and approvals are reloaded and the
// request is validated again, up to the configured retry count.
func (e *Engine) ProcessApproval(ctx context.Context, policyID, approvalID string, action policy.Action, comment string, approver policy.Approver) (a *policy.Approval, err error) {
	ctx, done := e.begin(ctx, "process_approval", "engine.ProcessApproval",
		tracing.NewAttributeBuilder().WithPolicy(policyID))
	defer done(&err)
	ctx = logging.WithPolicyID(ctx, policyID)
	ctx = logging.WithActor(ctx, approver.Name)

	for attempt := 0; ; attempt++ {
		var p *policy.Policy
		p, a, err = e.processOnce(ctx, policyID, approvalID, action, comment, approver)
		if err == nil {
			tracing.SetApprovalAttributes(trace.SpanFromContext(ctx), a.ID, string(a.Role), string(action))
			e.metrics.RecordApproval(string(action))
			e.record(ctx, &evidence.Record{
				Kind:        evidence.KindApprovalProcessed,
				SubjectID:   p.ID,
				OrgID:       p.OrgID,
				Actor:       approver.Name,
				Role:        string(approver.Role),
				Summary:     fmt.Sprintf("%s by %s; policy is %s", action, approver.Role, p.Status),
				ContentHash: recorder.HashString(p.Content),
				Revision:    p.Revision,
				Attributes: map[string]string{
					"approval_id": a.ID,
					"action":      string(action),
					"complete":    fmt.Sprint(a.IsComplete),
				},
			})
			return a, nil
		}
		if !errors.Is(err, storage.ErrRevisionConflict) || attempt >= e.retries {
			return nil, e.fail(opProcess, "approval", err, governance.KindConfiguration)
		}
		e.metrics.RecordConflict("approval")
		e.logger.DebugContext(ctx, "approval raced another writer, retrying", "attempt", attempt+1)
	}
}

func (e *Engine) processOnce(ctx context.Context, policyID, approvalID string, action policy.Action, comment string, approver policy.Approver) (*policy.Policy, *policy.Approval, error) {
	p, err := e.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, nil, err
	}
	approvals, err := e.store.ListApprovals(ctx, policyID)
	if err != nil {
		return nil, nil, err
	}

	months := e.reviewCycle
	if tmpl, ok := e.library.Load().Template(p.TemplateID); ok && tmpl.ReviewCycleMonths > 0 {
		months = tmpl.ReviewCycleMonths
	}

	target, err := e.workflow.Process(p, approvals, approval.Decision{
		ApprovalID:        approvalID,
		Action:            action,
		Comment:           comment,
		Approver:          approver,
		ReviewCycleMonths: months,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := e.store.UpdatePolicy(ctx, p, approvals...); err != nil {
		return nil, nil, err
	}
	return p, target.Clone(), nil
}

// ApprovalStatus is a policy with its approvals.
type ApprovalStatus struct {
	Policy    *policy.Policy     `json:"policy"`
	Approvals []*policy.Approval `json:"approvals"`
	// Actionable lists the IDs of approvals that can be acted on now.
	Actionable []string `json:"actionable"`
}

// ApprovalStatus returns the approvals of a policy and which of them can be
// acted on.
func (e *Engine) ApprovalStatus(ctx context.Context, policyID string) (*ApprovalStatus, error) {
	p, err := e.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, e.fail(opStatus, "policy", err, governance.KindConfiguration)
	}
	approvals, err := e.store.ListApprovals(ctx, policyID)
	if err != nil {
		return nil, e.fail(opStatus, "approval", err, governance.KindConfiguration)
	}
	st := &ApprovalStatus{Policy: p, Approvals: approvals, Actionable: []string{}}
	if p.Status == policy.StatusReview {
		for _, a := range approvals {
			if approval.Actionable(approvals, a) {
				st.Actionable = append(st.Actionable, a.ID)
			}
		}
	}
	return st, nil
}

// CheckEscalations fires the escalation rules that are due at now for every
// policy in review. Escalation levels are saved before notifying so a rule
// never fires twice for the same approval; a policy whose save conflicts is
// left for the next sweep. Failures on one policy do not stop the sweep and
// are returned together as a batch error.
func (e *Engine) CheckEscalations(ctx context.Context, now time.Time) (sent []approval.Notification, err error) {
	ctx, done := e.begin(ctx, "check_escalations", "engine.CheckEscalations", tracing.NewAttributeBuilder())
	defer done(&err)

	policies, err := e.store.ListPolicies(ctx, storage.PolicyFilter{Status: policy.StatusReview})
	if err != nil {
		return nil, e.fail(opEscalations, "policy", err, governance.KindConfiguration)
	}

	lib := e.library.Load()
	var errs []error
	for _, p := range policies {
		def, ok := lib.Workflow(p.TemplateID)
		if !ok || len(def.Escalations) == 0 {
			continue
		}
		notes, err := e.escalatePolicy(ctx, p, def, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("policy %s: %w", p.ID, err))
			continue
		}
		sent = append(sent, notes...)
	}

	if sent == nil {
		sent = []approval.Notification{}
	}
	if len(errs) > 0 {
		return sent, governance.Wrap(governance.KindBatch, opEscalations, errors.Join(errs...))
	}
	return sent, nil
}

func (e *Engine) escalatePolicy(ctx context.Context, p *policy.Policy, def *policy.WorkflowDefinition, now time.Time) ([]approval.Notification, error) {
	approvals, err := e.store.ListApprovals(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	levels := make(map[string]int, len(approvals))
	for _, a := range approvals {
		levels[a.ID] = a.EscalationLevel
	}

	notes := approval.Escalate(def, approvals, now)
	if len(notes) == 0 {
		return nil, nil
	}

	var changed []*policy.Approval
	for _, a := range approvals {
		if a.EscalationLevel != levels[a.ID] {
			changed = append(changed, a)
		}
	}
	if err := e.store.UpdateApprovals(ctx, changed...); err != nil {
		if errors.Is(err, storage.ErrRevisionConflict) {
			e.metrics.RecordConflict("approval")
			e.logger.InfoContext(ctx, "escalation deferred, approvals changed concurrently", "policy_id", p.ID)
			return nil, nil
		}
		return nil, err
	}

	ctx = logging.WithPolicyID(ctx, p.ID)
	for _, n := range notes {
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.WarnContext(ctx, "escalation notification failed",
				"approval_id", n.ApprovalID,
				"notify_role", n.NotifyRole,
				"error", err,
			)
		}
		e.metrics.RecordEscalation(string(n.NotifyRole))
		e.record(ctx, &evidence.Record{
			Kind:      evidence.KindEscalation,
			SubjectID: p.ID,
			OrgID:     p.OrgID,
			Role:      string(n.NotifyRole),
			Summary: fmt.Sprintf("%s approval pending %dh, escalated to %s (level %d)",
				n.PendingRole, int(n.PendingFor.Hours()), n.NotifyRole, n.Level),
			Attributes: map[string]string{"approval_id": n.ApprovalID},
		})
	}
	return notes, nil
}
