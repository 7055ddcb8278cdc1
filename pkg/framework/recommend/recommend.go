// Package recommend turns a prioritized gap list into remediation
// recommendations. Estimates come from gap counts only.
package recommend

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/charter/pkg/framework"
)

// Estimate is a coarse effort descriptor.
type Estimate struct {
	Effort   string
	Timeline string
	Impact   string
}

// EstimateFor sizes the remediation of count gaps of a priority.
func EstimateFor(p framework.Priority, count int) Estimate {
	var e Estimate
	switch {
	case count <= 1:
		e.Effort, e.Timeline = "low", "1-2 weeks"
	case count <= 3:
		e.Effort, e.Timeline = "medium", "2-4 weeks"
	default:
		e.Effort, e.Timeline = "high", "1-3 months"
	}

	switch {
	case p == framework.PriorityCritical:
		e.Impact = "high"
	case count >= 3:
		e.Impact = "high"
	default:
		e.Impact = "medium"
	}
	return e
}

// Generate returns recommendations for gaps, grouped by framework in ID order.
// A framework with critical gaps gets an immediate_action naming the first
// one; a framework with high gaps gets a policy_update listing all of them.
func Generate(gaps []framework.Gap) []framework.Recommendation {
	byFramework := map[string][]framework.Gap{}
	for _, g := range gaps {
		byFramework[g.Framework] = append(byFramework[g.Framework], g)
	}
	ids := make([]string, 0, len(byFramework))
	for id := range byFramework {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []framework.Recommendation
	for _, id := range ids {
		var critical, high []framework.Gap
		for _, g := range byFramework[id] {
			switch g.Priority {
			case framework.PriorityCritical:
				critical = append(critical, g)
			case framework.PriorityHigh:
				high = append(high, g)
			}
		}

		if len(critical) > 0 {
			first := critical[0]
			est := EstimateFor(framework.PriorityCritical, len(critical))
			desc := fmt.Sprintf("Control %s (%s) has no supporting evidence.", first.ControlID, first.ControlTitle)
			if len(critical) > 1 {
				desc += fmt.Sprintf(" %d other critical controls in %s are also unaddressed.", len(critical)-1, id)
			}
			out = append(out, framework.Recommendation{
				Type:        framework.RecommendImmediateAction,
				Framework:   id,
				Title:       "Address critical gap: " + first.ControlTitle,
				Description: desc,
				ControlIDs:  []string{first.ControlID},
				Effort:      est.Effort,
				Timeline:    est.Timeline,
				Impact:      est.Impact,
			})
		}

		if len(high) > 0 {
			titles := make([]string, len(high))
			controlIDs := make([]string, len(high))
			for i, g := range high {
				titles[i] = g.ControlTitle
				controlIDs[i] = g.ControlID
			}
			est := EstimateFor(framework.PriorityHigh, len(high))
			out = append(out, framework.Recommendation{
				Type:        framework.RecommendPolicyUpdate,
				Framework:   id,
				Title:       fmt.Sprintf("Update policy to cover %d high-priority %s controls", len(high), id),
				Description: "Add policy language for: " + strings.Join(titles, "; "),
				ControlIDs:  controlIDs,
				Effort:      est.Effort,
				Timeline:    est.Timeline,
				Impact:      est.Impact,
			})
		}
	}
	return out
}
