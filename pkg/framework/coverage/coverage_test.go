package coverage

import (
	"math"
	"testing"

	"mercator-hq/charter/pkg/framework"
)

func testFrameworks() []*framework.Framework {
	return []*framework.Framework{
		{
			ID: "fw-a",
			Controls: []framework.Control{
				{ID: "A-1", Title: "Student privacy notice"},
				{ID: "A-2", Title: "Risk assessment"},
				{ID: "A-3", Title: "Staff training"},
				{ID: "A-4", Title: "Data security controls"},
			},
		},
		{
			ID: "fw-b",
			Controls: []framework.Control{
				{ID: "B-1", Title: "AI governance board"},
				{ID: "B-2", Title: "Vendor review"},
			},
		},
		{ID: "fw-empty"},
	}
}

func TestCompute(t *testing.T) {
	mappings := []framework.ControlMapping{
		{Framework: "fw-a", ControlID: "A-1", Confidence: 0.9, Status: framework.StatusImplemented},
		{Framework: "fw-a", ControlID: "A-3", Confidence: 0.4, Status: framework.StatusPlanned},
		{Framework: "fw-a", ControlID: "A-3", Confidence: 0.35, Status: framework.StatusPlanned},
		{Framework: "fw-a", ControlID: "UNKNOWN", Confidence: 1, Status: framework.StatusImplemented},
		{Framework: "fw-b", ControlID: "B-2", Confidence: 0.6, Status: framework.StatusPartiallyImplemented},
	}

	got := Compute(testFrameworks(), mappings)
	if len(got) != 3 {
		t.Fatalf("Compute() = %d entries, want 3", len(got))
	}

	a := got[0]
	if a.Framework != "fw-a" || a.TotalControls != 4 || a.MappedControls != 2 || a.ImplementedControls != 1 {
		t.Errorf("fw-a = %+v", a)
	}
	if a.CoveragePercentage != 50 || a.ImplementationPercentage != 25 {
		t.Errorf("fw-a percentages = %v, %v; want 50, 25", a.CoveragePercentage, a.ImplementationPercentage)
	}
	if math.Abs(a.AverageConfidence-0.65) > 1e-9 {
		t.Errorf("fw-a AverageConfidence = %v, want 0.65", a.AverageConfidence)
	}

	b := got[1]
	if b.CoveragePercentage != 50 || b.ImplementationPercentage != 50 || b.AverageConfidence != 0.6 {
		t.Errorf("fw-b = %+v", b)
	}

	empty := got[2]
	if empty.CoveragePercentage != 0 || empty.AverageConfidence != 0 {
		t.Errorf("fw-empty = %+v", empty)
	}

	for _, c := range got {
		if c.MappedControls > c.TotalControls {
			t.Errorf("%s: mapped %d > total %d", c.Framework, c.MappedControls, c.TotalControls)
		}
		if c.CoveragePercentage < 0 || c.CoveragePercentage > 100 {
			t.Errorf("%s: coverage %v out of [0,100]", c.Framework, c.CoveragePercentage)
		}
	}
}

func TestGaps_Ordering(t *testing.T) {
	mappings := []framework.ControlMapping{
		{Framework: "fw-a", ControlID: "A-3", Confidence: 0.5},
	}

	gaps := Gaps(testFrameworks(), mappings)

	want := []struct {
		fw, control string
		priority    framework.Priority
	}{
		{"fw-a", "A-1", framework.PriorityCritical},
		{"fw-a", "A-4", framework.PriorityCritical},
		{"fw-a", "A-2", framework.PriorityHigh},
		{"fw-b", "B-1", framework.PriorityHigh},
		{"fw-b", "B-2", framework.PriorityMedium},
	}
	if len(gaps) != len(want) {
		t.Fatalf("Gaps() = %+v, want %d gaps", gaps, len(want))
	}
	for i, w := range want {
		g := gaps[i]
		if g.Framework != w.fw || g.ControlID != w.control || g.Priority != w.priority {
			t.Errorf("gaps[%d] = %s/%s %s, want %s/%s %s", i, g.Framework, g.ControlID, g.Priority, w.fw, w.control, w.priority)
		}
	}
	for i := 1; i < len(gaps); i++ {
		if gaps[i-1].Priority.Weight() < gaps[i].Priority.Weight() {
			t.Errorf("priority weight increases at %d", i)
		}
	}
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		title string
		want  framework.Priority
	}{
		{"Student Privacy", framework.PriorityCritical},
		{"Information SECURITY program", framework.PriorityCritical},
		{"Privacy risk review", framework.PriorityCritical},
		{"Risk management", framework.PriorityHigh},
		{"Governance structure", framework.PriorityHigh},
		{"Professional development", framework.PriorityMedium},
	}
	for _, tt := range tests {
		if got := PriorityFor(tt.title); got != tt.want {
			t.Errorf("PriorityFor(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestSortGaps_LowLast(t *testing.T) {
	gaps := []framework.Gap{
		{Framework: "x", ControlID: "1", Priority: framework.PriorityLow},
		{Framework: "x", ControlID: "2", Priority: framework.PriorityCritical},
		{Framework: "x", ControlID: "3", Priority: framework.PriorityMedium},
	}
	SortGaps(gaps)
	if gaps[0].ControlID != "2" || gaps[2].ControlID != "1" {
		t.Errorf("SortGaps() = %+v", gaps)
	}
}
