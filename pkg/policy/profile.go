package policy

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OrganizationProfile describes the organization a policy is generated for.
// It is supplied by the external intake workflow.
type OrganizationProfile struct {
	OrgID             string `yaml:"org_id" json:"org_id"`
	Name              string `yaml:"name" json:"name"`
	Type              string `yaml:"type" json:"type"`
	State             string `yaml:"state" json:"state"`
	StudentAgeMin     *int   `yaml:"student_age_min,omitempty" json:"student_age_min,omitempty"`
	StudentAgeMax     *int   `yaml:"student_age_max,omitempty" json:"student_age_max,omitempty"`
	HasPrivacyOfficer bool   `yaml:"has_privacy_officer" json:"has_privacy_officer"`
}

// ProfileField names a profile attribute a selection rule can test.
type ProfileField string

const (
	FieldOrganizationName  ProfileField = "organizationName"
	FieldOrganizationType  ProfileField = "organizationType"
	FieldState             ProfileField = "state"
	FieldStudentAgeMin     ProfileField = "studentAgeMin"
	FieldStudentAgeMax     ProfileField = "studentAgeMax"
	FieldHasPrivacyOfficer ProfileField = "hasPrivacyOfficer"
)

// Valid reports whether f is a known profile field.
func (f ProfileField) Valid() bool {
	switch f {
	case FieldOrganizationName, FieldOrganizationType, FieldState,
		FieldStudentAgeMin, FieldStudentAgeMax, FieldHasPrivacyOfficer:
		return true
	}
	return false
}

// Value returns the profile value for field as a string. The second return
// is false when the profile does not carry the field (e.g., an unset age bound).
func (p *OrganizationProfile) Value(field ProfileField) (string, bool) {
	switch field {
	case FieldOrganizationName:
		return p.Name, p.Name != ""
	case FieldOrganizationType:
		return p.Type, p.Type != ""
	case FieldState:
		return p.State, p.State != ""
	case FieldStudentAgeMin:
		if p.StudentAgeMin == nil {
			return "", false
		}
		return strconv.Itoa(*p.StudentAgeMin), true
	case FieldStudentAgeMax:
		if p.StudentAgeMax == nil {
			return "", false
		}
		return strconv.Itoa(*p.StudentAgeMax), true
	case FieldHasPrivacyOfficer:
		return strconv.FormatBool(p.HasPrivacyOfficer), true
	}
	return "", false
}

// Operator is the comparison a selection rule applies.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpIn          Operator = "in"
	OpLessThan    Operator = "less_than"
	OpGreaterThan Operator = "greater_than"
)

// Valid reports whether op is one of the four supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpIn, OpLessThan, OpGreaterThan:
		return true
	}
	return false
}

// SelectionRule tests one profile field. Values holds a single element for
// equals/less_than/greater_than and the candidate set for in.
type SelectionRule struct {
	Field    ProfileField `json:"field"`
	Operator Operator     `json:"operator"`
	Values   []string     `json:"values"`
}

// Value returns the single comparison value.
func (r SelectionRule) Value() string {
	if len(r.Values) == 0 {
		return ""
	}
	return r.Values[0]
}

// Validate checks the field, operator and arity.
func (r SelectionRule) Validate() error {
	if !r.Field.Valid() {
		return fmt.Errorf("unknown rule field %q", r.Field)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("unknown rule operator %q", r.Operator)
	}
	if len(r.Values) == 0 {
		return fmt.Errorf("rule on %q has no comparison value", r.Field)
	}
	if r.Operator != OpIn && len(r.Values) != 1 {
		return fmt.Errorf("operator %q on %q takes exactly one value", r.Operator, r.Field)
	}
	if r.Operator == OpLessThan || r.Operator == OpGreaterThan {
		if _, err := strconv.ParseFloat(r.Values[0], 64); err != nil {
			return fmt.Errorf("operator %q on %q needs a numeric value, got %q", r.Operator, r.Field, r.Values[0])
		}
	}
	return nil
}

// String renders the rule for logs and lint output.
func (r SelectionRule) String() string {
	if r.Operator == OpIn {
		return fmt.Sprintf("%s in [%s]", r.Field, strings.Join(r.Values, ", "))
	}
	return fmt.Sprintf("%s %s %s", r.Field, r.Operator, r.Value())
}

// UnmarshalYAML accepts a scalar or a sequence for value and validates the
// rule, so an unknown operator fails at load time.
func (r *SelectionRule) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Field    string    `yaml:"field"`
		Operator string    `yaml:"operator"`
		Value    yaml.Node `yaml:"value"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	r.Field = ProfileField(raw.Field)
	r.Operator = Operator(raw.Operator)
	r.Values = nil

	switch raw.Value.Kind {
	case yaml.SequenceNode:
		if err := raw.Value.Decode(&r.Values); err != nil {
			return fmt.Errorf("line %d: %w", raw.Value.Line, err)
		}
	case yaml.ScalarNode:
		r.Values = []string{raw.Value.Value}
	case 0:
		// missing value, reported by Validate
	default:
		return fmt.Errorf("line %d: rule value must be a scalar or a list", raw.Value.Line)
	}

	if err := r.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// MarshalYAML writes the rule in the same shape UnmarshalYAML reads.
func (r SelectionRule) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{
		"field":    string(r.Field),
		"operator": string(r.Operator),
	}
	if r.Operator == OpIn {
		out["value"] = r.Values
	} else {
		out["value"] = r.Value()
	}
	return out, nil
}
