package extract

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"mercator-hq/charter/pkg/framework"
)

const policyText = `# Acceptable Use of AI

Staff may use approved AI tools for instruction.

## Student Privacy

Student data must be protected. Teachers must not enter student data into
unapproved tools. Student data is covered by FERPA.

## Incident Reporting
Report misuse to the technology director.
`

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluate(t *testing.T) {
	text := NewText(policyText)
	e := NewEvaluator()

	tests := []struct {
		name        string
		rule        framework.ExtractionRule
		wantScore   float64
		wantMatched []string
	}{
		{
			name:        "keyword all found",
			rule:        framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "privacy|FERPA"},
			wantScore:   1,
			wantMatched: []string{"privacy", "ferpa"},
		},
		{
			name:        "keyword fraction",
			rule:        framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "privacy | coppa | gdpr | ferpa"},
			wantScore:   0.5,
			wantMatched: []string{"privacy", "ferpa"},
		},
		{
			name:      "keyword none",
			rule:      framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "biometric"},
			wantScore: 0,
		},
		{
			name:      "keyword empty alternatives",
			rule:      framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "||"},
			wantScore: 0,
		},
		{
			name:        "pattern counts matches",
			rule:        framework.ExtractionRule{Type: framework.RulePattern, Pattern: `student\s+data`},
			wantScore:   0.6,
			wantMatched: []string{"student data"},
		},
		{
			name:        "pattern saturates at five",
			rule:        framework.ExtractionRule{Type: framework.RulePattern, Pattern: `t`},
			wantScore:   1,
			wantMatched: []string{"t"},
		},
		{
			name:        "section header",
			rule:        framework.ExtractionRule{Type: framework.RuleSectionHeader, Pattern: "Privacy"},
			wantScore:   1,
			wantMatched: []string{"privacy"},
		},
		{
			name:      "section header only in body",
			rule:      framework.ExtractionRule{Type: framework.RuleSectionHeader, Pattern: "misuse"},
			wantScore: 0,
		},
		{
			name:        "semantic term fraction",
			rule:        framework.ExtractionRule{Type: framework.RuleSemantic, Pattern: "student privacy equity bias"},
			wantScore:   0.5,
			wantMatched: []string{"student", "privacy"},
		},
		{
			name:        "required context missing halves",
			rule:        framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "privacy", RequiredContext: []string{"encryption", "vendor"}},
			wantScore:   0.5,
			wantMatched: []string{"privacy"},
		},
		{
			name:        "required context present",
			rule:        framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "privacy", RequiredContext: []string{"encryption", "protected"}},
			wantScore:   1,
			wantMatched: []string{"privacy"},
		},
		{
			name:        "exclusion present",
			rule:        framework.ExtractionRule{Type: framework.RuleKeyword, Pattern: "privacy", Exclusions: []string{"ferpa"}},
			wantScore:   0.3,
			wantMatched: []string{"privacy"},
		},
		{
			name: "context and exclusion compound",
			rule: framework.ExtractionRule{
				Type:            framework.RuleKeyword,
				Pattern:         "privacy",
				RequiredContext: []string{"vendor"},
				Exclusions:      []string{"ferpa"},
			},
			wantScore:   0.15,
			wantMatched: []string{"privacy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(text, tt.rule)
			if got.Err != nil {
				t.Fatalf("Evaluate() Err = %v", got.Err)
			}
			if !approx(got.Score, tt.wantScore) {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if !reflect.DeepEqual(got.Matched, tt.wantMatched) {
				t.Errorf("Matched = %v, want %v", got.Matched, tt.wantMatched)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Errorf("Score %v out of [0,1]", got.Score)
			}
		})
	}
}

func TestEvaluate_MalformedPattern(t *testing.T) {
	e := NewEvaluator()
	rule := framework.ExtractionRule{ID: "broken", Type: framework.RulePattern, Pattern: "([a-z"}

	for i := 0; i < 2; i++ {
		got := e.Evaluate(NewText(policyText), rule)
		if got.Score != 0 {
			t.Errorf("Score = %v, want 0", got.Score)
		}
		var perr *PatternError
		if !errors.As(got.Err, &perr) {
			t.Fatalf("Err = %v, want *PatternError", got.Err)
		}
		if perr.RuleID != "broken" {
			t.Errorf("RuleID = %q, want broken", perr.RuleID)
		}
	}
}

func TestEvaluate_UnknownType(t *testing.T) {
	got := NewEvaluator().Evaluate(NewText(policyText), framework.ExtractionRule{ID: "x", Type: "vector"})
	if got.Err == nil || got.Score != 0 {
		t.Errorf("Evaluate() = %+v, want error and zero score", got)
	}
}

func TestNewText_Headers(t *testing.T) {
	text := NewText("#Not a header\n  ### Indented Header  \n####### too deep\n#\nbody")
	want := []string{"indented header", ""}
	if got := text.Headers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Headers() = %q, want %q", got, want)
	}
}
