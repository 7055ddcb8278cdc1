package library

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/charter/pkg/policy"
)

const templatesYAML = `
templates:
  - id: ai-use
    title: "{{organizationName}} AI Use Policy"
    content: |
      # AI Use Policy
      {{clauses}}
    available_clauses: [purpose, coppa]
    frameworks: [nist-ai-rmf]
    risk_level: high
    review_cycle_months: 12
workflows:
  - template_id: ai-use
    mode: sequential
    steps:
      - role: technology_director
        required: true
      - role: superintendent
        required: true
    escalations:
      - after_days: 7
        notify_role: superintendent
`

const clausesYAML = `
clauses:
  - id: purpose
    title: Purpose
    body: This policy governs AI use.
    priority: 1
  - id: coppa
    title: Children's Privacy
    body: Parental consent is required for students under 13.
    depends_on: [purpose]
    rules:
      - field: studentAgeMin
        operator: less_than
        value: 13
      - field: organizationType
        operator: in
        value: [K12, District]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "templates.yaml", templatesYAML)
	writeFile(t, dir, "clauses/k12.yml", clausesYAML)
	writeFile(t, dir, ".hidden/broken.yaml", "not: [valid")
	writeFile(t, dir, "README.md", "# ignored")

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := lib.Stats(); got != (Stats{Templates: 1, Clauses: 2, Workflows: 1}) {
		t.Errorf("Stats() = %+v", got)
	}
	if lib.Source != dir {
		t.Errorf("Source = %q", lib.Source)
	}

	coppa, ok := lib.Clause("coppa")
	if !ok {
		t.Fatal("coppa clause missing")
	}
	if len(coppa.Rules) != 2 || coppa.Rules[1].Operator != policy.OpIn || len(coppa.Rules[1].Values) != 2 {
		t.Errorf("coppa rules = %+v", coppa.Rules)
	}

	w, _ := lib.Workflow("ai-use")
	if w.Mode != policy.WorkflowSequential || len(w.RequiredRoles()) != 2 {
		t.Errorf("workflow = %+v", w)
	}
}

func TestLoad_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "library.yaml", clausesYAML)

	lib, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if lib.Stats().Clauses != 2 {
		t.Errorf("clauses = %d", lib.Stats().Clauses)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantMsg string
	}{
		{
			name:    "empty directory",
			files:   map[string]string{},
			wantMsg: "no library files found",
		},
		{
			name:    "unknown field",
			files:   map[string]string{"a.yaml": "clauses:\n  - id: x\n    titel: X\n"},
			wantMsg: "YAML parsing failed",
		},
		{
			name:    "unknown operator",
			files:   map[string]string{"a.yaml": "clauses:\n  - id: x\n    rules:\n      - field: state\n        operator: like\n        value: CA\n"},
			wantMsg: "unknown rule operator",
		},
		{
			name:    "invalid utf8",
			files:   map[string]string{"a.yaml": "clauses: \xff\xfe"},
			wantMsg: "invalid UTF-8",
		},
		{
			name: "duplicate across files",
			files: map[string]string{
				"a.yaml": "clauses:\n  - id: x\n    title: X\n    body: one\n",
				"b.yaml": "clauses:\n  - id: x\n    title: X\n    body: two\n",
			},
			wantMsg: `duplicate clause "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_CollectsEveryFileError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "clauses: [")
	writeFile(t, dir, "b.yaml", "templates: {")

	_, err := Load(dir)
	var list *ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Load() error = %T, want *ErrorList", err)
	}
	if len(list.Errors) != 2 {
		t.Errorf("errors = %d, want 2", len(list.Errors))
	}

	var le *LoadError
	if !errors.As(err, &le) || !strings.HasSuffix(le.FilePath, "a.yaml") {
		t.Errorf("first LoadError = %+v", le)
	}
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestParse(t *testing.T) {
	lib, err := Parse([]byte(templatesYAML + clausesYAML[len("\n"):]))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if lib.Stats().Templates != 1 || lib.Stats().Clauses != 2 {
		t.Errorf("Stats() = %+v", lib.Stats())
	}

	empty, err := Parse(nil)
	if err != nil || empty.Stats() != (Stats{}) {
		t.Errorf("Parse(nil) = %+v, %v", empty, err)
	}
}
