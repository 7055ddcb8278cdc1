package library

import (
	"strings"
	"testing"

	"mercator-hq/charter/pkg/policy"
)

func TestValidateClause(t *testing.T) {
	tests := []struct {
		name    string
		clause  policy.Clause
		wantErr string
	}{
		{
			name:   "valid",
			clause: policy.Clause{ID: "purpose", Title: "Purpose", Body: "text"},
		},
		{
			name:    "empty body",
			clause:  policy.Clause{ID: "purpose", Title: "Purpose", Body: "  \n"},
			wantErr: "body must not be empty",
		},
		{
			name:    "missing id",
			clause:  policy.Clause{Title: "Purpose", Body: "text"},
			wantErr: "id is required",
		},
		{
			name:    "self dependency",
			clause:  policy.Clause{ID: "a", Title: "A", Body: "text", DependsOn: []string{"a"}},
			wantErr: "depends on itself",
		},
		{
			name: "invalid rule",
			clause: policy.Clause{ID: "a", Title: "A", Body: "text", Rules: []policy.SelectionRule{
				{Field: policy.FieldStudentAgeMin, Operator: policy.OpLessThan, Values: []string{"young"}},
			}},
			wantErr: "rules[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClause(&tt.clause)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateClause() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateClause() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLint(t *testing.T) {
	lib, err := New(
		[]policy.Template{
			{ID: "ai-use", Title: "AI Use", Content: "{{clauses}}", AvailableClauses: []string{"a", "missing"}},
			{ID: "orphan", Title: "Orphan", Content: "text"},
		},
		[]policy.Clause{
			{ID: "a", Title: "A", Body: "a", DependsOn: []string{"b"}},
			{ID: "b", Title: "B", Body: "b", DependsOn: []string{"a"}},
			{ID: "c", Title: "C", Body: "c", DependsOn: []string{"ghost"}},
		},
		[]policy.WorkflowDefinition{
			{
				TemplateID:  "ai-use",
				Steps:       []policy.WorkflowStep{{Role: policy.RoleSuperintendent, Required: true}, {Role: policy.RoleSuperintendent}},
				Escalations: []policy.EscalationRule{{AfterDays: 0, NotifyRole: "janitor"}},
			},
			{TemplateID: "unknown", Mode: "random"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	issues := Lint(lib)
	if !HasErrors(issues) {
		t.Fatal("Lint() found no errors")
	}

	var got []string
	for _, i := range issues {
		got = append(got, i.String())
	}
	want := []string{
		`error: clause "a": part of a dependency cycle`,
		`error: clause "b": part of a dependency cycle`,
		`warning: clause "c": depends on unknown clause "ghost"`,
		`error: template "ai-use": references unknown clause "missing"`,
		`warning: template "orphan": no approval workflow registered`,
		`error: workflow "ai-use": escalation after_days must be positive`,
		`error: workflow "ai-use": escalation notifies unknown role "janitor"`,
		`error: workflow "ai-use": role "superintendent" listed twice`,
		`error: workflow "unknown": has no required steps`,
		`error: workflow "unknown": registered for unknown template`,
		`error: workflow "unknown": unknown mode "random"`,
	}
	if len(got) != len(want) {
		t.Fatalf("Lint() returned %d issues:\n%s", len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("issue[%d] = %s\nwant        %s", i, got[i], want[i])
		}
	}
}

func TestLint_CleanLibrary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "templates.yaml", templatesYAML)
	writeFile(t, dir, "clauses.yaml", clausesYAML)

	lib, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if issues := Lint(lib); len(issues) != 0 {
		t.Errorf("Lint() = %v, want no issues", issues)
	}
}
