package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"mercator-hq/charter/pkg/framework"
)

const testCatalog = `
frameworks:
  - id: test-fw
    name: Test Framework
    version: "1"
    controls:
      - id: C-1
        title: Privacy notice
        requirements: [Publish a privacy notice]
        rules:
          - id: r1
            type: keyword
            pattern: "privacy|notice"
            weight: 0.8
      - id: C-2
        title: Risk register
        description: Maintain a risk register.
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() error = %v", err)
	}

	want := []string{"ca-sopipa", "nist-ai-rmf", "us-doe-ai"}
	if got := c.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if issues := Lint(c); len(issues) != 0 {
		t.Errorf("builtin catalog has lint issues: %v", issues)
	}

	ctl, ok := c.Control("nist-ai-rmf", "MEASURE-2.10")
	if !ok {
		t.Fatal("MEASURE-2.10 not found")
	}
	if ctl.Framework != "nist-ai-rmf" {
		t.Errorf("control Framework = %q, want inherited framework id", ctl.Framework)
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", testCatalog)
	writeFile(t, dir, ".hidden/b.yaml", "not: [valid")
	writeFile(t, dir, "README.md", "# catalogs")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	f, ok := c.Framework("test-fw")
	if !ok {
		t.Fatal("test-fw not loaded")
	}
	if len(f.Controls) != 2 {
		t.Errorf("controls = %d, want 2", len(f.Controls))
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "frameworks: [",
			wantErr: "invalid YAML",
		},
		{
			name:    "unknown field",
			content: "frameworks:\n  - id: x\n    colour: red\n",
			wantErr: "invalid YAML",
		},
		{
			name:    "missing framework id",
			content: "frameworks:\n  - name: x\n",
			wantErr: "framework without id",
		},
		{
			name:    "duplicate control",
			content: "frameworks:\n  - id: x\n    controls:\n      - id: a\n      - id: a\n",
			wantErr: `duplicate control "a"`,
		},
		{
			name:    "duplicate framework",
			content: "frameworks:\n  - id: x\n  - id: x\n",
			wantErr: `duplicate framework "x"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "c.yaml", tt.content)
			_, err := Load(p)
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err == nil || !strings.Contains(err.Error(), "failed to access path") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestMerge_OverlayReplaces(t *testing.T) {
	base, err := Builtin()
	if err != nil {
		t.Fatal(err)
	}
	overlay, err := New(framework.Framework{
		ID:       "nist-ai-rmf",
		Controls: []framework.Control{{ID: "ONLY", Title: "Only control"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	merged := Merge(base, overlay)
	if merged.Len() != base.Len() {
		t.Errorf("Len() = %d, want %d", merged.Len(), base.Len())
	}
	f, _ := merged.Framework("nist-ai-rmf")
	if len(f.Controls) != 1 || f.Controls[0].ID != "ONLY" {
		t.Errorf("nist-ai-rmf not replaced: %+v", f.Controls)
	}
	if _, ok := base.Control("nist-ai-rmf", "ONLY"); ok {
		t.Error("Merge() mutated the base catalog")
	}
}

func TestLint(t *testing.T) {
	c, err := New(framework.Framework{
		ID: "fw",
		Controls: []framework.Control{
			{
				ID:    "A",
				Title: "Rules",
				Rules: []framework.ExtractionRule{
					{ID: "w0", Type: framework.RuleKeyword, Pattern: "x", Weight: 0},
					{ID: "w2", Type: framework.RuleKeyword, Pattern: "x", Weight: 1.5},
					{ID: "bad", Type: framework.RulePattern, Pattern: "([", Weight: 0.5},
					{ID: "kind", Type: "fuzzy", Pattern: "x", Weight: 0.5},
					{ID: "ok", Type: framework.RuleKeyword, Pattern: "x", Weight: 1},
					{ID: "ok", Type: framework.RuleKeyword, Pattern: "y", Weight: 1},
				},
			},
			{ID: "B"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	issues := Lint(c)
	wantPrefixes := []string{
		`fw/A: duplicate rule "ok"`,
		`fw/A: rule "bad": error parsing regexp`,
		`fw/A: rule "kind": unknown type "fuzzy"`,
		`fw/A: rule "w0": weight 0 outside (0,1]`,
		`fw/A: rule "w2": weight 1.5 outside (0,1]`,
		`fw/B: control has no rules and no text to fall back on`,
		`fw/B: control has no title`,
	}
	if len(issues) != len(wantPrefixes) {
		t.Fatalf("Lint() = %d issues, want %d:\n%s", len(issues), len(wantPrefixes), strings.Join(issues, "\n"))
	}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(issues[i], prefix) {
			t.Errorf("issue[%d] = %q, want prefix %q", i, issues[i], prefix)
		}
	}
}
