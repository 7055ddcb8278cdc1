package approval

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/charter/pkg/policy"
)

// MaxCommentLength bounds an approval comment, in characters.
const MaxCommentLength = 10000

// Decision is one approver's action on one approval.
type Decision struct {
	ApprovalID string
	Action     policy.Action
	Comment    string
	Approver   policy.Approver

	// ReviewCycleMonths sets NextReviewAt when the decision completes the
	// workflow. It comes from the policy's template.
	ReviewCycleMonths int
}

// Workflow applies approval state changes.
type Workflow struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator overrides approval ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) { w.newID = newID }
}

// New creates a Workflow. A nil logger uses slog.Default().
func New(logger *slog.Logger, opts ...Option) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workflow{
		logger: logger.With("component", "policy.approval"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Initiate moves a draft policy into review and returns one approval per
// required role in def. Sequential workflows number the approvals 1..n;
// parallel workflows put every approval on step 1.
func (w *Workflow) Initiate(pol *policy.Policy, def *policy.WorkflowDefinition) ([]*policy.Approval, error) {
	if def == nil {
		return nil, fmt.Errorf("template %q: %w", pol.TemplateID, ErrNoWorkflowDefined)
	}
	if pol.Status != policy.StatusDraft {
		return nil, invalid("status", "policy %s is %s; only draft policies can enter review", pol.ID, pol.Status)
	}

	required := def.RequiredRoles()
	if len(required) == 0 {
		return nil, fmt.Errorf("template %q: workflow has no required roles: %w", pol.TemplateID, ErrNoWorkflowDefined)
	}
	for _, r := range required {
		if !r.Valid() {
			return nil, fmt.Errorf("template %q: workflow names unknown role %q", pol.TemplateID, r)
		}
	}

	status, err := Transition(pol.Status, policy.StatusReview)
	if err != nil {
		return nil, err
	}

	now := w.now().UTC()
	approvals := make([]*policy.Approval, 0, len(required))
	for i, role := range required {
		step := 1
		if def.Mode == policy.WorkflowSequential {
			step = i + 1
		}
		approvals = append(approvals, &policy.Approval{
			ID:                w.newID(),
			PolicyID:          pol.ID,
			Role:              role,
			Step:              step,
			Comments:          []policy.Comment{},
			RequiredApprovals: append([]policy.Role(nil), required...),
			CurrentApprovals:  []policy.Role{},
			CreatedAt:         now,
		})
	}

	pol.Status = status
	pol.UpdatedAt = now
	for _, a := range approvals {
		pol.ApprovalTrail = append(pol.ApprovalTrail, *a.Clone())
	}

	w.logger.Info("approval workflow initiated",
		"policy_id", pol.ID,
		"template_id", pol.TemplateID,
		"mode", def.Mode,
		"required_roles", len(required),
	)

	return approvals, nil
}

// Process applies d to the approval it names. approvals must hold every
// approval of pol; the approvals and pol are updated in place. On a
// validation failure nothing is modified.
func (w *Workflow) Process(pol *policy.Policy, approvals []*policy.Approval, d Decision) (*policy.Approval, error) {
	target, err := w.validate(pol, approvals, d)
	if err != nil {
		return nil, err
	}

	now := w.now().UTC()

	target.Comments = append(target.Comments, policy.Comment{
		Author:    d.Approver.Name,
		Role:      d.Approver.Role,
		Action:    d.Action,
		Text:      strings.TrimSpace(d.Comment),
		CreatedAt: now,
	})
	target.Action = d.Action
	target.ActedAt = &now
	target.Signer = d.Approver.Name
	target.Signature = d.Approver.Signature

	current := approvedRoles(approvals)
	complete := policy.Complete(target.RequiredApprovals, current)
	for _, a := range approvals {
		a.CurrentApprovals = append([]policy.Role{}, current...)
		a.IsComplete = complete
	}

	next := policy.StatusReview
	switch {
	case d.Action == policy.ActionReject:
		next = policy.StatusRejected
	case complete:
		next = policy.StatusApproved
	}
	status, err := Transition(pol.Status, next)
	if err != nil {
		return nil, err
	}
	pol.Status = status
	pol.UpdatedAt = now

	if status == policy.StatusApproved {
		months := d.ReviewCycleMonths
		if months <= 0 {
			months = 12
		}
		review := now.AddDate(0, months, 0)
		pol.NextReviewAt = &review
	}

	pol.ApprovalTrail = append(pol.ApprovalTrail, *target.Clone())

	w.logger.Info("approval processed",
		"policy_id", pol.ID,
		"approval_id", target.ID,
		"role", target.Role,
		"action", d.Action,
		"policy_status", pol.Status,
		"complete", complete,
	)

	return target, nil
}

func (w *Workflow) validate(pol *policy.Policy, approvals []*policy.Approval, d Decision) (*policy.Approval, error) {
	if !d.Action.Valid() {
		return nil, invalid("action", "unknown action %q", d.Action)
	}

	comment := strings.TrimSpace(d.Comment)
	if comment == "" && d.Action != policy.ActionApprove {
		return nil, invalid("comment", "a comment is required to %s", d.Action)
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, invalid("comment", "exceeds %d characters", MaxCommentLength)
	}

	if !d.Approver.Role.Valid() {
		return nil, invalid("approver.role", "unknown role %q", d.Approver.Role)
	}
	if strings.TrimSpace(d.Approver.Name) == "" {
		return nil, invalid("approver.name", "is required")
	}

	switch pol.Status {
	case policy.StatusReview:
	case policy.StatusRejected:
		return nil, invalid("status", "policy %s was rejected", pol.ID)
	case policy.StatusApproved:
		return nil, invalid("status", "policy %s is already approved", pol.ID)
	default:
		return nil, invalid("status", "policy %s is not in review", pol.ID)
	}

	var target *policy.Approval
	for _, a := range approvals {
		if a.ID == d.ApprovalID {
			target = a
			break
		}
	}
	if target == nil || target.PolicyID != pol.ID {
		return nil, invalid("approval_id", "approval %s does not belong to policy %s", d.ApprovalID, pol.ID)
	}
	if d.Approver.Role != target.Role {
		return nil, invalid("approver.role", "approval %s needs %s, not %s", target.ID, target.Role, d.Approver.Role)
	}
	if !target.Pending() {
		return nil, invalid("approval_id", "approval %s already recorded %s", target.ID, target.Action)
	}

	if waiting := blockers(approvals, target); len(waiting) > 0 {
		return nil, &OutOfOrderError{ApprovalID: target.ID, Step: target.Step, Waiting: waiting}
	}

	return target, nil
}

// Actionable reports whether a can be acted on now: it is pending and every
// approval on an earlier step has been approved.
func Actionable(approvals []*policy.Approval, a *policy.Approval) bool {
	return a.Pending() && len(blockers(approvals, a)) == 0
}

func blockers(approvals []*policy.Approval, target *policy.Approval) []policy.Role {
	var waiting []policy.Role
	for _, a := range approvals {
		if a.Step < target.Step && a.Action != policy.ActionApprove {
			waiting = append(waiting, a.Role)
		}
	}
	return waiting
}

func approvedRoles(approvals []*policy.Approval) []policy.Role {
	var roles []policy.Role
	seen := make(map[policy.Role]bool)
	for _, a := range approvals {
		if a.Action == policy.ActionApprove && !seen[a.Role] {
			seen[a.Role] = true
			roles = append(roles, a.Role)
		}
	}
	return roles
}
