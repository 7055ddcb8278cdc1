package assembler

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
)

func testTemplate() *policy.Template {
	return &policy.Template{
		ID:    "ai-acceptable-use",
		Title: "{{organizationName}} AI Acceptable Use Policy",
		Content: "# {{organizationName}} AI Acceptable Use Policy\n\n" +
			"Effective {{effectiveDate}} for {{jurisdiction}}. Reviewed every {{reviewCycleMonths}} months.\n\n" +
			"{{clause:purpose}}\n\n" +
			"{{#if orgType=K12}}Parents may contact {{parentContact}}.{{/if}}\n\n" +
			"{{#if orgType=HigherEd}}Faculty senate review applies.{{/if}}\n\n" +
			"{{clauses}}\n\n" +
			"{{clause:research}}\n",
		AvailableClauses:  []string{"purpose", "privacy", "research"},
		ReviewCycleMonths: 12,
	}
}

func testClauses() []*policy.Clause {
	return []*policy.Clause{
		{ID: "purpose", Title: "Purpose", Body: "This policy governs AI use."},
		{ID: "privacy", Title: "Student Privacy", Body: "Student data stays in {{state}}."},
	}
}

func testProfile() *policy.OrganizationProfile {
	return &policy.OrganizationProfile{Name: "Lincoln USD", Type: "K12", State: "CA"}
}

func TestAssemble(t *testing.T) {
	res := Assemble(testTemplate(), testProfile(), testClauses(), Options{
		Jurisdiction:  "California",
		EffectiveDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})

	if res.Title != "Lincoln USD AI Acceptable Use Policy" {
		t.Errorf("Title = %q", res.Title)
	}
	if !governance.HasDisclaimer(res.Content) {
		t.Error("content is missing the disclaimer banner")
	}

	contains := []string{
		"# Lincoln USD AI Acceptable Use Policy",
		"Effective August 1, 2026 for California. Reviewed every 12 months.",
		"## Purpose\n\nThis policy governs AI use.",
		"## Student Privacy\n\nStudent data stays in CA.",
		"Parents may contact {{parentContact}}.",
	}
	for _, want := range contains {
		if !strings.Contains(res.Content, want) {
			t.Errorf("content missing %q\n%s", want, res.Content)
		}
	}

	absent := []string{"Faculty senate", "{{clause:", "{{clauses}}", "{{#if", "{{/if}}", "\n\n\n"}
	for _, s := range absent {
		if strings.Contains(res.Content, s) {
			t.Errorf("content unexpectedly contains %q", s)
		}
	}

	if strings.Count(res.Content, "## Purpose") != 1 {
		t.Error("explicitly placed clause was repeated by {{clauses}}")
	}

	if len(res.FillableFields) != 1 {
		t.Fatalf("FillableFields = %v, want only parentContact", res.FillableFields)
	}
	if v, ok := res.FillableFields["parentContact"]; !ok || v != "" {
		t.Errorf("FillableFields[parentContact] = %q, %v", v, ok)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	opts := Options{Jurisdiction: "California"}
	first := Assemble(testTemplate(), testProfile(), testClauses(), opts)

	for i := 0; i < 5; i++ {
		again := Assemble(testTemplate(), testProfile(), testClauses(), opts)
		if again.Content != first.Content || again.Title != first.Title {
			t.Fatalf("run %d produced different output", i)
		}
	}

	if _, ok := first.FillableFields[TokenEffectiveDate]; !ok {
		t.Error("zero effective date should leave the token fillable")
	}
}

func TestAssemble_CallerFields(t *testing.T) {
	res := Assemble(testTemplate(), testProfile(), testClauses(), Options{
		Fields: map[string]string{"parentContact": "office@lincoln.example"},
	})

	if !strings.Contains(res.Content, "Parents may contact office@lincoln.example.") {
		t.Errorf("caller field not substituted:\n%s", res.Content)
	}
	if _, ok := res.FillableFields["parentContact"]; ok {
		t.Error("resolved field still reported as fillable")
	}
}

func TestAssemble_AppendsWithoutClausesPlaceholder(t *testing.T) {
	tmpl := &policy.Template{ID: "bare", Title: "Bare", Content: "# Bare\n"}

	res := Assemble(tmpl, testProfile(), testClauses()[:1], Options{})

	want := governance.DisclaimerBanner + "# Bare\n\n## Purpose\n\nThis policy governs AI use.\n"
	if res.Content != want {
		t.Errorf("Content = %q, want %q", res.Content, want)
	}
}

func TestAssemble_ClauseConditionals(t *testing.T) {
	clauses := []*policy.Clause{{
		ID:    "consent",
		Title: "Consent",
		Body:  "Base rule.{{#if orgType=K12}} Parents consent.{{/if}}{{#if orgType=HigherEd}} Students consent.{{/if}}",
	}}
	tmpl := &policy.Template{ID: "consent", Title: "Consent", Content: "# Consent\n\n{{clauses}}\n"}

	tests := []struct {
		orgType string
		want    string
		absent  string
	}{
		{"K12", "Base rule. Parents consent.", "Students consent."},
		{"HigherEd", "Base rule. Students consent.", "Parents consent."},
		{"Nonprofit", "Base rule.\n", "consent."},
	}
	for _, tt := range tests {
		t.Run(tt.orgType, func(t *testing.T) {
			res := Assemble(tmpl, &policy.OrganizationProfile{Name: "Lincoln", Type: tt.orgType}, clauses, Options{})
			if !strings.Contains(res.Content, tt.want) {
				t.Errorf("content missing %q:\n%s", tt.want, res.Content)
			}
			if strings.Contains(res.Content, tt.absent) || strings.Contains(res.Content, "{{#if") || strings.Contains(res.Content, "{{/if}}") {
				t.Errorf("content keeps text for another organization type:\n%s", res.Content)
			}
			if _, ok := res.FillableFields["/if"]; ok {
				t.Error("conditional markup reported as a fillable field")
			}
		})
	}
	if clauses[0].Body != "Base rule.{{#if orgType=K12}} Parents consent.{{/if}}{{#if orgType=HigherEd}} Students consent.{{/if}}" {
		t.Error("Assemble modified the caller's clause")
	}
}

func TestRenderConditionals(t *testing.T) {
	tests := []struct {
		name    string
		orgType string
		want    string
	}{
		{"first listed type", "K12", "a[x]b"},
		{"second listed type", "HigherEd", "a[x]b"},
		{"unlisted type", "Nonprofit", "ab"},
		{"empty type", "", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderConditionals("a{{#if orgType=K12|HigherEd}}[x]{{/if}}b", tt.orgType)
			if got != tt.want {
				t.Errorf("renderConditionals() = %q, want %q", got, tt.want)
			}
		})
	}
}
