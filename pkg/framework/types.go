package framework

import (
	"errors"
	"fmt"
	"time"
)

// RuleType selects how an ExtractionRule is scored.
type RuleType string

const (
	RuleKeyword       RuleType = "keyword"
	RulePattern       RuleType = "pattern"
	RuleSectionHeader RuleType = "section_header"
	RuleSemantic      RuleType = "semantic"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleKeyword, RulePattern, RuleSectionHeader, RuleSemantic:
		return true
	}
	return false
}

// ExtractionRule scores how strongly a document evidences a control.
// Weight must be in (0,1].
type ExtractionRule struct {
	ID              string   `yaml:"id" json:"id"`
	Type            RuleType `yaml:"type" json:"type"`
	Pattern         string   `yaml:"pattern" json:"pattern"`
	Weight          float64  `yaml:"weight" json:"weight"`
	RequiredContext []string `yaml:"required_context" json:"required_context,omitempty"`
	Exclusions      []string `yaml:"exclusions" json:"exclusions,omitempty"`
}

// Validate checks the rule type, pattern and weight.
func (r ExtractionRule) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("rule %q: unknown type %q", r.ID, r.Type)
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %q: pattern is required", r.ID)
	}
	if r.Weight <= 0 || r.Weight > 1 {
		return fmt.Errorf("rule %q: weight %v outside (0,1]", r.ID, r.Weight)
	}
	return nil
}

// Control is a single requirement from an external framework.
type Control struct {
	ID               string           `yaml:"id" json:"id"`
	Framework        string           `yaml:"framework" json:"framework"`
	Title            string           `yaml:"title" json:"title"`
	Description      string           `yaml:"description" json:"description"`
	Requirements     []string         `yaml:"requirements" json:"requirements"`
	EvidenceExamples []string         `yaml:"evidence_examples" json:"evidence_examples,omitempty"`
	Rules            []ExtractionRule `yaml:"rules" json:"rules,omitempty"`
}

// Framework is one control catalog.
type Framework struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Version  string    `yaml:"version" json:"version"`
	Controls []Control `yaml:"controls" json:"controls"`
}

// ImplementationStatus grades a mapping by confidence.
type ImplementationStatus string

const (
	StatusImplemented          ImplementationStatus = "implemented"
	StatusPartiallyImplemented ImplementationStatus = "partially_implemented"
	StatusPlanned              ImplementationStatus = "planned"
	StatusNotImplemented       ImplementationStatus = "not_implemented"
)

// StatusFor returns the implementation status for a confidence score.
func StatusFor(confidence float64) ImplementationStatus {
	switch {
	case confidence >= 0.8:
		return StatusImplemented
	case confidence >= 0.5:
		return StatusPartiallyImplemented
	case confidence >= 0.3:
		return StatusPlanned
	default:
		return StatusNotImplemented
	}
}

// ControlMapping links a document to a control it evidences.
// Confidence is always in [0,1].
type ControlMapping struct {
	DocumentID string               `json:"document_id"`
	Framework  string               `json:"framework"`
	ControlID  string               `json:"control_id"`
	Confidence float64              `json:"confidence"`
	Status     ImplementationStatus `json:"status"`
	Evidence   []string             `json:"evidence"`
	// Gaps lists control requirements no evidence sentence addresses.
	Gaps []string `json:"gaps,omitempty"`
}

// Priority ranks a gap.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight orders priorities: critical 4, high 3, medium 2, low 1.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Gap is a catalog control with no supporting mapping.
type Gap struct {
	Framework    string   `json:"framework"`
	ControlID    string   `json:"control_id"`
	ControlTitle string   `json:"control_title"`
	Priority     Priority `json:"priority"`
	Description  string   `json:"description"`
}

// Coverage summarizes one framework for a document.
type Coverage struct {
	Framework                string  `json:"framework"`
	TotalControls            int     `json:"total_controls"`
	MappedControls           int     `json:"mapped_controls"`
	ImplementedControls      int     `json:"implemented_controls"`
	CoveragePercentage       float64 `json:"coverage_percentage"`
	ImplementationPercentage float64 `json:"implementation_percentage"`
	AverageConfidence        float64 `json:"average_confidence"`
}

// RecommendationType classifies a recommendation.
type RecommendationType string

const (
	RecommendImmediateAction RecommendationType = "immediate_action"
	RecommendPolicyUpdate    RecommendationType = "policy_update"
)

// Recommendation is a suggested remediation for a framework's gaps.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Framework   string             `json:"framework"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	ControlIDs  []string           `json:"control_ids"`
	Effort      string             `json:"effort"`
	Timeline    string             `json:"timeline"`
	Impact      string             `json:"impact"`
}

// Document is the extracted text of an uploaded document. It is supplied by
// the external ingestion pipeline.
type Document struct {
	ID          string   `json:"id"`
	OrgID       string   `json:"org_id,omitempty"`
	Title       string   `json:"title,omitempty"`
	Text        string   `json:"text"`
	ContainsPII bool     `json:"contains_pii"`
	StudentData bool     `json:"student_data"`
	Frameworks  []string `json:"frameworks,omitempty"`
	States      []string `json:"states,omitempty"`
}

// Update announces a new version of a framework.
type Update struct {
	FrameworkID      string    `json:"framework_id" yaml:"framework_id"`
	Version          string    `json:"version" yaml:"version"`
	Description      string    `json:"description" yaml:"description"`
	AffectedControls []string  `json:"affected_controls" yaml:"affected_controls"`
	EffectiveDate    time.Time `json:"effective_date,omitempty" yaml:"effective_date,omitempty"`
}

// Validate checks that the update names a framework and a version.
func (u Update) Validate() error {
	if u.FrameworkID == "" {
		return errors.New("framework update has no framework id")
	}
	if u.Version == "" {
		return fmt.Errorf("framework update for %q has no version", u.FrameworkID)
	}
	return nil
}

// MappingReport is the result of mapping one document onto every selected
// framework.
type MappingReport struct {
	DocumentID      string           `json:"document_id"`
	Mappings        []ControlMapping `json:"mappings"`
	Coverage        []Coverage       `json:"coverage"`
	Gaps            []Gap            `json:"gaps"`
	Recommendations []Recommendation `json:"recommendations"`
	// ConfidenceScore is the mean confidence over all mappings.
	ConfidenceScore float64   `json:"confidence_score"`
	GeneratedAt     time.Time `json:"generated_at"`
	Disclaimer      string    `json:"disclaimer"`
}
