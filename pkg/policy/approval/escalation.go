package approval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"mercator-hq/charter/pkg/policy"
)

// Notification asks NotifyRole to chase an approval that has been pending
// too long.
type Notification struct {
	PolicyID    string        `json:"policy_id"`
	ApprovalID  string        `json:"approval_id"`
	PendingRole policy.Role   `json:"pending_role"`
	NotifyRole  policy.Role   `json:"notify_role"`
	PendingFor  time.Duration `json:"pending_for"`
	Level       int           `json:"level"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Notifier delivers escalation notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "policy.escalation")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	n.logger.WarnContext(ctx, "approval escalated",
		"policy_id", note.PolicyID,
		"approval_id", note.ApprovalID,
		"pending_role", note.PendingRole,
		"notify_role", note.NotifyRole,
		"pending_hours", int(note.PendingFor.Hours()),
		"level", note.Level,
	)
	return nil
}

// Escalate returns the notifications due at now for the approvals of one
// policy. Rules fire in order of AfterDays, each at most once per approval;
// EscalationLevel records how many have fired. Required roles are never
// changed. Only approvals that can currently be acted on are considered.
func Escalate(def *policy.WorkflowDefinition, approvals []*policy.Approval, now time.Time) []Notification {
	if def == nil || len(def.Escalations) == 0 {
		return nil
	}

	rules := append([]policy.EscalationRule(nil), def.Escalations...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].AfterDays < rules[j].AfterDays })

	var out []Notification
	for _, a := range approvals {
		if !Actionable(approvals, a) {
			continue
		}
		pending := now.Sub(pendingSince(approvals, a))
		for a.EscalationLevel < len(rules) {
			rule := rules[a.EscalationLevel]
			if pending < time.Duration(rule.AfterDays)*24*time.Hour {
				break
			}
			a.EscalationLevel++
			out = append(out, Notification{
				PolicyID:    a.PolicyID,
				ApprovalID:  a.ID,
				PendingRole: a.Role,
				NotifyRole:  rule.NotifyRole,
				PendingFor:  pending,
				Level:       a.EscalationLevel,
				CreatedAt:   now,
			})
		}
	}
	return out
}

// pendingSince is when a became actionable: its creation, or the last
// approval of an earlier step if that came later.
func pendingSince(approvals []*policy.Approval, a *policy.Approval) time.Time {
	since := a.CreatedAt
	for _, other := range approvals {
		if other.Step < a.Step && other.ActedAt != nil && other.ActedAt.After(since) {
			since = *other.ActedAt
		}
	}
	return since
}
