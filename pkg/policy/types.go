package policy

import (
	"time"
)

// Status is the lifecycle state of a Policy.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusReview   Status = "review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// RiskLevel classifies a template.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Template is a policy skeleton from the clause library. Content contains
// clause placeholders ({{clause:<id>}} or {{clauses}}) and organization tokens.
type Template struct {
	ID                string    `yaml:"id" json:"id"`
	Title             string    `yaml:"title" json:"title"`
	Content           string    `yaml:"content" json:"content"`
	AvailableClauses  []string  `yaml:"available_clauses" json:"available_clauses"`
	Frameworks        []string  `yaml:"frameworks" json:"frameworks"`
	RiskLevel         RiskLevel `yaml:"risk_level" json:"risk_level"`
	ReviewCycleMonths int       `yaml:"review_cycle_months" json:"review_cycle_months"`
}

// Clause is a conditionally included fragment of policy text.
type Clause struct {
	ID       string          `yaml:"id" json:"id"`
	Title    string          `yaml:"title" json:"title"`
	Body     string          `yaml:"body" json:"body"`
	Category string          `yaml:"category" json:"category"`
	Priority int             `yaml:"priority" json:"priority"`
	Rules    []SelectionRule `yaml:"rules" json:"rules"`
	// DependsOn lists clause IDs that must be placed before this clause.
	DependsOn []string `yaml:"depends_on" json:"depends_on"`
	// Revision increases by one on every accepted save.
	Revision int64 `yaml:"revision" json:"revision"`
}

// Policy is an assembled, versioned policy document for one organization.
// DiffHistory and ApprovalTrail are append-only.
type Policy struct {
	ID             string            `json:"id"`
	OrgID          string            `json:"org_id"`
	TemplateID     string            `json:"template_id"`
	Title          string            `json:"title"`
	Status         Status            `json:"status"`
	Content        string            `json:"content"`
	FillableFields map[string]string `json:"fillable_fields"`
	Jurisdiction   string            `json:"jurisdiction"`
	Frameworks     []string          `json:"frameworks"`
	DiffHistory    []Diff            `json:"diff_history"`
	ApprovalTrail  []Approval        `json:"approval_trail"`
	AutoUpdate     bool              `json:"auto_update"`
	NextReviewAt   *time.Time        `json:"next_review_at,omitempty"`
	// Version counts applied redline sets, starting at 1.
	Version int `json:"version"`
	// Revision is the optimistic concurrency counter for repository saves.
	Revision   int64     `json:"revision"`
	Disclaimer string    `json:"disclaimer"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasFramework reports whether the policy references the framework.
func (p *Policy) HasFramework(frameworkID string) bool {
	for _, f := range p.Frameworks {
		if f == frameworkID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	if p.FillableFields != nil {
		c.FillableFields = make(map[string]string, len(p.FillableFields))
		for k, v := range p.FillableFields {
			c.FillableFields[k] = v
		}
	}
	c.Frameworks = append([]string(nil), p.Frameworks...)
	c.DiffHistory = append([]Diff(nil), p.DiffHistory...)
	c.ApprovalTrail = make([]Approval, len(p.ApprovalTrail))
	for i := range p.ApprovalTrail {
		c.ApprovalTrail[i] = *p.ApprovalTrail[i].Clone()
	}
	if p.NextReviewAt != nil {
		t := *p.NextReviewAt
		c.NextReviewAt = &t
	}
	return &c
}

// ChangeType classifies a section-level diff.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeDeletion     ChangeType = "deletion"
	ChangeModification ChangeType = "modification"
)

// Diff is one section-level change between two revisions of policy content.
// Diffs are immutable once created.
type Diff struct {
	ID                  string     `json:"id"`
	Version             int        `json:"version"`
	ChangeType          ChangeType `json:"change_type"`
	SectionID           string     `json:"section_id"`
	OriginalText        string     `json:"original_text"`
	NewText             string     `json:"new_text"`
	Rationale           string     `json:"rationale"`
	SourceJustification string     `json:"source_justification"`
	ApprovalRequired    bool       `json:"approval_required"`
	// PrecedingSectionID anchors an addition: the new section is inserted
	// after this section ("" means at the start).
	PrecedingSectionID string    `json:"preceding_section_id,omitempty"`
	Author             string    `json:"author,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// UpdateResult reports the outcome of a framework auto-update for one policy.
type UpdateResult struct {
	PolicyID         string `json:"policy_id"`
	Success          bool   `json:"success"`
	Skipped          bool   `json:"skipped,omitempty"`
	Diffs            []Diff `json:"diffs,omitempty"`
	RequiresApproval bool   `json:"requires_approval"`
	Error            string `json:"error,omitempty"`
}
