package redline

import (
	"errors"
	"strings"
	"testing"

	"mercator-hq/charter/pkg/policy"
)

func TestParseSections(t *testing.T) {
	content := "intro text\n\n# Title\nbody\n## Data Privacy\nx\n## Data Privacy\ny\n```\n# not a header\n```\n#hashtag line\n"

	sections := ParseSections(content)

	wantIDs := []string{"preamble", "title", "data-privacy", "data-privacy-2"}
	if len(sections) != len(wantIDs) {
		t.Fatalf("got %d sections, want %d: %+v", len(sections), len(wantIDs), sections)
	}

	var joined strings.Builder
	for i, s := range sections {
		if s.ID != wantIDs[i] {
			t.Errorf("section %d ID = %q, want %q", i, s.ID, wantIDs[i])
		}
		joined.WriteString(s.Text)
	}
	if joined.String() != content {
		t.Errorf("sections do not reproduce the input:\n%q\n%q", joined.String(), content)
	}
	if sections[3].Level != 2 || sections[3].Header != "Data Privacy" {
		t.Errorf("last section = %+v", sections[3])
	}
}

func TestParseSections_UnclosedFence(t *testing.T) {
	content := "# One\n```\ncode\n# Two\nx\n"

	sections := ParseSections(content)

	if len(sections) != 1 || sections[0].ID != "one" {
		t.Fatalf("sections = %+v, want only \"one\"", sections)
	}
	if sections[0].Text != content {
		t.Errorf("section text = %q, want the whole content", sections[0].Text)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Data Privacy & Security": "data-privacy-security",
		"  1. Definitions  ":       "1-definitions",
		"???":                     "section",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestDiff_Classification covers {A:x, B:y} -> {A:x, C:z}.
func TestDiff_Classification(t *testing.T) {
	original := "## A\nx\n## B\ny\n"
	updated := "## A\nx\n## C\nz\n"

	diffs := Diff(original, updated, Options{Version: 2, Rationale: "restructure"})

	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want 2: %+v", len(diffs), diffs)
	}

	byType := map[policy.ChangeType]policy.Diff{}
	for _, d := range diffs {
		byType[d.ChangeType] = d
	}

	del, ok := byType[policy.ChangeDeletion]
	if !ok || del.SectionID != "b" || !del.ApprovalRequired {
		t.Errorf("deletion = %+v, want section b requiring approval", del)
	}
	add, ok := byType[policy.ChangeAddition]
	if !ok || add.SectionID != "c" || add.PrecedingSectionID != "a" || add.ApprovalRequired {
		t.Errorf("addition = %+v, want section c after a without approval", add)
	}
	if add.Rationale != "restructure" || add.Version != 2 {
		t.Errorf("addition annotations = %q/%d", add.Rationale, add.Version)
	}
}

func TestDiff_IdenticalProducesNothing(t *testing.T) {
	content := "# Policy\n\n## Scope\nAll staff.\n"
	if diffs := Diff(content, content, Options{Version: 1}); len(diffs) != 0 {
		t.Errorf("Diff() of identical content = %+v", diffs)
	}
}

func TestDiff_Deterministic(t *testing.T) {
	original := "## A\nx\n## Privacy\ny\n"
	updated := "## A\nx2\n## Privacy\ny2\n## New\nz\n"

	first := Diff(original, updated, Options{Version: 3})
	second := Diff(original, updated, Options{Version: 3})

	if len(first) != len(second) {
		t.Fatal("diff counts differ between runs")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("diff %d ID %s != %s", i, first[i].ID, second[i].ID)
		}
	}
	if first[0].ID == DiffID(4, first[0].SectionID, first[0].ChangeType) {
		t.Error("diff ID should depend on version")
	}
}

func TestRequiresApproval(t *testing.T) {
	tests := []struct {
		section string
		change  policy.ChangeType
		want    bool
	}{
		{"student-privacy", policy.ChangeModification, true},
		{"data-security", policy.ChangeAddition, true},
		{"definitions", policy.ChangeModification, true},
		{"compliance-framework-updates", policy.ChangeModification, true},
		{"scope", policy.ChangeModification, false},
		{"scope", policy.ChangeDeletion, true},
	}
	for _, tt := range tests {
		if got := RequiresApproval(tt.section, tt.change); got != tt.want {
			t.Errorf("RequiresApproval(%q, %s) = %v, want %v", tt.section, tt.change, got, tt.want)
		}
	}
}

func TestReplay_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"add and delete", "## A\nx\n## B\ny\n", "## A\nx\n## C\nz\n"},
		{"modify", "# T\n\n## Scope\nold\n", "# T\n\n## Scope\nnew\n"},
		{"preamble appears", "## A\nx\n", "lead in\n\n## A\nx\n"},
		{"insert at front and middle", "## B\ny\n## D\nw\n", "## A\nx\n## B\ny\n## C\nz\n## D\nw\n"},
		{"missing trailing newline", "## A\nx", "## A\nx\n## B\ny"},
		{"reorder", "## A\n1\n## B\n2\n## C\n3\n", "## C\n3\n## A\n1\n## B\n2\n"},
		{"swap with edit", "## A\n1\n## B\n2\n", "## B\n2!\n## A\n1\n"},
		{"duplicate headers", "## Note\na\n## Note\nb\n", "## Note\na\n## Note\nb2\n## Note\nc\n"},
		{"empty to content", "", "# New policy\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, dir := range []struct{ from, to string }{{tt.a, tt.b}, {tt.b, tt.a}} {
				diffs := Diff(dir.from, dir.to, Options{Version: 2})
				got, err := Replay(dir.from, diffs)
				if err != nil {
					t.Fatalf("Replay() error: %v", err)
				}
				if got != dir.to {
					t.Errorf("Replay() = %q, want %q", got, dir.to)
				}
			}
		})
	}
}

func TestReplay_StaleOriginal(t *testing.T) {
	diffs := Diff("## A\nx\n", "## A\ny\n", Options{Version: 2})

	_, err := Replay("## A\nchanged meanwhile\n", diffs)

	var rerr *ReplayError
	if !errors.As(err, &rerr) || rerr.SectionID != "a" {
		t.Fatalf("Replay() error = %v, want ReplayError on section a", err)
	}
}

func TestReplay_MissingAnchor(t *testing.T) {
	diffs := []policy.Diff{{ID: "d1", ChangeType: policy.ChangeAddition, SectionID: "z", NewText: "## Z\n", PrecedingSectionID: "nope"}}

	if _, err := Replay("## A\nx\n", diffs); err == nil {
		t.Fatal("Replay() with a missing anchor should fail")
	}
}

func TestRender(t *testing.T) {
	diffs := Diff("## Scope\nAll staff.\n", "## Scope\nAll staff and students.\n## Privacy\np\n", Options{Version: 2, Rationale: "expand"})

	out := Render(diffs)

	for _, want := range []string{
		"### MODIFICATION `scope`",
		"<ins> and students</ins>",
		"### ADDITION `privacy` (approval required)",
		"_Rationale:_ expand",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}
