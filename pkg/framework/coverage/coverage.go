// Package coverage computes per-framework coverage for a document's mappings
// and the prioritized list of controls left without evidence.
package coverage

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/charter/pkg/framework"
)

// Compute returns one Coverage per framework, in the order given. Mappings
// for controls the framework does not define are ignored, so MappedControls
// never exceeds TotalControls.
func Compute(frameworks []*framework.Framework, mappings []framework.ControlMapping) []framework.Coverage {
	byFramework := groupMappings(mappings)

	out := make([]framework.Coverage, 0, len(frameworks))
	for _, f := range frameworks {
		cov := framework.Coverage{Framework: f.ID, TotalControls: len(f.Controls)}

		known := make(map[string]struct{}, len(f.Controls))
		for _, ctl := range f.Controls {
			known[ctl.ID] = struct{}{}
		}

		var confidenceSum float64
		for _, m := range byFramework[f.ID] {
			if _, ok := known[m.ControlID]; !ok {
				continue
			}
			cov.MappedControls++
			confidenceSum += m.Confidence
			if m.Status == framework.StatusImplemented || m.Status == framework.StatusPartiallyImplemented {
				cov.ImplementedControls++
			}
		}

		if cov.TotalControls > 0 {
			cov.CoveragePercentage = percent(cov.MappedControls, cov.TotalControls)
			cov.ImplementationPercentage = percent(cov.ImplementedControls, cov.TotalControls)
		}
		if cov.MappedControls > 0 {
			cov.AverageConfidence = confidenceSum / float64(cov.MappedControls)
		}
		out = append(out, cov)
	}
	return out
}

// Gaps returns every control of frameworks that has no mapping, sorted by
// descending priority weight, then framework and control ID.
func Gaps(frameworks []*framework.Framework, mappings []framework.ControlMapping) []framework.Gap {
	byFramework := groupMappings(mappings)

	var gaps []framework.Gap
	for _, f := range frameworks {
		for _, ctl := range f.Controls {
			if _, mapped := byFramework[f.ID][ctl.ID]; mapped {
				continue
			}
			gaps = append(gaps, framework.Gap{
				Framework:    f.ID,
				ControlID:    ctl.ID,
				ControlTitle: ctl.Title,
				Priority:     PriorityFor(ctl.Title),
				Description:  fmt.Sprintf("No evidence found for %s %s: %s", f.ID, ctl.ID, ctl.Title),
			})
		}
	}
	SortGaps(gaps)
	return gaps
}

// SortGaps orders gaps by descending priority weight, then framework and
// control ID.
func SortGaps(gaps []framework.Gap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		wi, wj := gaps[i].Priority.Weight(), gaps[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		if gaps[i].Framework != gaps[j].Framework {
			return gaps[i].Framework < gaps[j].Framework
		}
		return gaps[i].ControlID < gaps[j].ControlID
	})
}

// PriorityFor grades a control by keywords in its title.
func PriorityFor(title string) framework.Priority {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "privacy"), strings.Contains(t, "security"):
		return framework.PriorityCritical
	case strings.Contains(t, "risk"), strings.Contains(t, "governance"):
		return framework.PriorityHigh
	default:
		return framework.PriorityMedium
	}
}

// groupMappings indexes mappings by framework and control ID. A control
// mapped more than once keeps its highest-confidence mapping.
func groupMappings(mappings []framework.ControlMapping) map[string]map[string]framework.ControlMapping {
	out := map[string]map[string]framework.ControlMapping{}
	for _, m := range mappings {
		controls, ok := out[m.Framework]
		if !ok {
			controls = map[string]framework.ControlMapping{}
			out[m.Framework] = controls
		}
		if prev, dup := controls[m.ControlID]; !dup || m.Confidence > prev.Confidence {
			controls[m.ControlID] = m
		}
	}
	return out
}

func percent(part, total int) float64 {
	return float64(part) / float64(total) * 100
}
