package approval

import (
	"context"
	"testing"
	"time"

	"mercator-hq/charter/pkg/policy"
)

func TestEscalate(t *testing.T) {
	def := definition(policy.WorkflowSequential)
	def.Escalations = []policy.EscalationRule{
		{AfterDays: 7, NotifyRole: policy.RoleBoardMember},
		{AfterDays: 3, NotifyRole: policy.RoleSuperintendent},
	}

	w := newTestWorkflow()
	pol := draftPolicy()
	approvals, err := w.Initiate(pol, def)
	if err != nil {
		t.Fatal(err)
	}

	if got := Escalate(def, approvals, testNow.Add(48*time.Hour)); len(got) != 0 {
		t.Fatalf("escalated after 2 days: %+v", got)
	}

	got := Escalate(def, approvals, testNow.Add(4*24*time.Hour))
	if len(got) != 1 || got[0].NotifyRole != policy.RoleSuperintendent || got[0].ApprovalID != approvals[0].ID {
		t.Fatalf("day 4 notifications = %+v", got)
	}
	if approvals[1].EscalationLevel != 0 {
		t.Error("blocked sequential step was escalated")
	}

	if again := Escalate(def, approvals, testNow.Add(5*24*time.Hour)); len(again) != 0 {
		t.Errorf("rule fired twice: %+v", again)
	}

	got = Escalate(def, approvals, testNow.Add(8*24*time.Hour))
	if len(got) != 1 || got[0].NotifyRole != policy.RoleBoardMember || got[0].Level != 2 {
		t.Fatalf("day 8 notifications = %+v", got)
	}

	for _, a := range approvals {
		if len(a.RequiredApprovals) != 2 {
			t.Errorf("escalation changed required roles: %v", a.RequiredApprovals)
		}
	}
}

func TestEscalate_SequentialClockStartsAtPreviousStep(t *testing.T) {
	def := definition(policy.WorkflowSequential)
	def.Escalations = []policy.EscalationRule{{AfterDays: 3, NotifyRole: policy.RoleBoardMember}}

	w := newTestWorkflow()
	pol := draftPolicy()
	approvals, _ := w.Initiate(pol, def)

	acted := testNow.Add(10 * 24 * time.Hour)
	approvals[0].Action = policy.ActionApprove
	approvals[0].ActedAt = &acted

	if got := Escalate(def, approvals, acted.Add(24*time.Hour)); len(got) != 0 {
		t.Errorf("step 2 escalated one day after becoming actionable: %+v", got)
	}
	if got := Escalate(def, approvals, acted.Add(4*24*time.Hour)); len(got) != 1 {
		t.Errorf("step 2 not escalated after four days: %+v", got)
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil)
	if err := n.Notify(context.Background(), Notification{PolicyID: "p"}); err != nil {
		t.Errorf("Notify() error: %v", err)
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"hourly", "0 * * * *", true, false},
		{"empty schedule", "", false, false},
		{"invalid schedule", "every tuesday", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweep := func(context.Context, time.Time) ([]Notification, error) { return nil, nil }
			s := NewScheduler(tt.schedule, sweep, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning && s.NextRun() == nil {
				t.Error("NextRun() = nil for a running scheduler")
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}
