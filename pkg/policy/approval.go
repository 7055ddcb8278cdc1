package policy

import (
	"fmt"
	"time"
)

// Role is an approver role. The set is fixed.
type Role string

const (
	RoleSuperintendent     Role = "superintendent"
	RoleTechnologyDirector Role = "technology_director"
	RolePrivacyOfficer     Role = "privacy_officer"
	RoleLegalCounsel       Role = "legal_counsel"
	RoleBoardMember        Role = "board_member"
	RoleCurriculumDirector Role = "curriculum_director"
	RoleComplianceOfficer  Role = "compliance_officer"
)

var validRoles = map[Role]struct{}{
	RoleSuperintendent:     {},
	RoleTechnologyDirector: {},
	RolePrivacyOfficer:     {},
	RoleLegalCounsel:       {},
	RoleBoardMember:        {},
	RoleCurriculumDirector: {},
	RoleComplianceOfficer:  {},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown approver role %q", s)
	}
	return r, nil
}

// Action is an approver's decision.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRequestChanges:
		return true
	}
	return false
}

// Comment is one entry in an approval's comment thread.
type Comment struct {
	Author    string    `json:"author"`
	Role      Role      `json:"role"`
	Action    Action    `json:"action"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Approver identifies who is acting on an approval.
type Approver struct {
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
}

// Approval is one role's sign-off record for a policy. Action is empty while
// the approval is pending.
type Approval struct {
	ID                string     `json:"id"`
	PolicyID          string     `json:"policy_id"`
	Role              Role       `json:"role"`
	Step              int        `json:"step"`
	Action            Action     `json:"action,omitempty"`
	Comments          []Comment  `json:"comments"`
	RequiredApprovals []Role     `json:"required_approvals"`
	CurrentApprovals  []Role     `json:"current_approvals"`
	IsComplete        bool       `json:"is_complete"`
	Signer            string     `json:"signer,omitempty"`
	Signature         string     `json:"signature,omitempty"`
	Revision          int64      `json:"revision"`
	EscalationLevel   int        `json:"escalation_level"`
	CreatedAt         time.Time  `json:"created_at"`
	ActedAt           *time.Time `json:"acted_at,omitempty"`
}

// Pending reports whether the approval still awaits a final decision.
// A request_changes action keeps the approval pending.
func (a *Approval) Pending() bool {
	return a.Action == "" || a.Action == ActionRequestChanges
}

// Clone returns a deep copy.
func (a *Approval) Clone() *Approval {
	if a == nil {
		return nil
	}
	c := *a
	c.Comments = append([]Comment(nil), a.Comments...)
	c.RequiredApprovals = append([]Role(nil), a.RequiredApprovals...)
	c.CurrentApprovals = append([]Role(nil), a.CurrentApprovals...)
	if a.ActedAt != nil {
		t := *a.ActedAt
		c.ActedAt = &t
	}
	return &c
}

// Complete reports whether current contains every role in required.
func Complete(required, current []Role) bool {
	have := make(map[Role]struct{}, len(current))
	for _, r := range current {
		have[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// WorkflowMode controls whether approvals may be given in any order.
type WorkflowMode string

const (
	WorkflowParallel   WorkflowMode = "parallel"
	WorkflowSequential WorkflowMode = "sequential"
)

// WorkflowDefinition lists the approver roles a template's policies need.
type WorkflowDefinition struct {
	TemplateID  string           `yaml:"template_id" json:"template_id"`
	Mode        WorkflowMode     `yaml:"mode" json:"mode"`
	Steps       []WorkflowStep   `yaml:"steps" json:"steps"`
	Escalations []EscalationRule `yaml:"escalations" json:"escalations"`
}

// WorkflowStep is one approver role in a workflow.
type WorkflowStep struct {
	Role     Role `yaml:"role" json:"role"`
	Required bool `yaml:"required" json:"required"`
}

// RequiredRoles returns the roles whose approval completes the workflow, in
// step order.
func (w *WorkflowDefinition) RequiredRoles() []Role {
	var roles []Role
	for _, s := range w.Steps {
		if s.Required {
			roles = append(roles, s.Role)
		}
	}
	return roles
}

// EscalationRule notifies NotifyRole once an approval has been pending for
// AfterDays days.
type EscalationRule struct {
	AfterDays  int  `yaml:"after_days" json:"after_days"`
	NotifyRole Role `yaml:"notify_role" json:"notify_role"`
}
