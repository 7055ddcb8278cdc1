package catalog

import (
	"fmt"
	"regexp"
	"sort"

	"mercator-hq/charter/pkg/framework"
)

// Lint returns one message per problem that would make a control unscoreable
// or misleading: invalid rule types and weights, malformed patterns and
// controls with neither rules nor requirements. Messages are sorted.
func Lint(c *Catalog) []string {
	var issues []string
	for _, f := range c.Frameworks() {
		for _, ctl := range f.Controls {
			where := fmt.Sprintf("%s/%s", f.ID, ctl.ID)
			if ctl.Title == "" {
				issues = append(issues, fmt.Sprintf("%s: control has no title", where))
			}
			if len(ctl.Rules) == 0 && len(ctl.Requirements) == 0 && ctl.Description == "" {
				issues = append(issues, fmt.Sprintf("%s: control has no rules and no text to fall back on", where))
			}
			seen := map[string]bool{}
			for _, r := range ctl.Rules {
				if seen[r.ID] {
					issues = append(issues, fmt.Sprintf("%s: duplicate rule %q", where, r.ID))
				}
				seen[r.ID] = true
				if err := r.Validate(); err != nil {
					issues = append(issues, fmt.Sprintf("%s: %v", where, err))
					continue
				}
				if r.Type == framework.RulePattern {
					if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
						issues = append(issues, fmt.Sprintf("%s: rule %q: %v", where, r.ID, err))
					}
				}
			}
		}
	}
	sort.Strings(issues)
	return issues
}
