// Package assembler renders a template and its selected clauses into policy
// content.
//
// Placeholders understood in template content:
//
//	{{clause:<id>}}                      a selected clause, or nothing
//	{{clauses}}                          every selected clause not placed explicitly
//	{{#if orgType=K12|HigherEd}}..{{/if}} kept only for the listed organization types
//	{{organizationName}} and friends     organization tokens
//
// Any other {{token}} is left in place and reported as a fillable field.
// Assembly never reads the clock; the effective date comes from Options.
package assembler

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mercator-hq/charter/pkg/governance"
	"mercator-hq/charter/pkg/policy"
)

// Organization tokens substituted from the profile and options.
const (
	TokenOrganizationName  = "organizationName"
	TokenOrganizationType  = "organizationType"
	TokenState             = "state"
	TokenJurisdiction      = "jurisdiction"
	TokenEffectiveDate     = "effectiveDate"
	TokenReviewCycleMonths = "reviewCycleMonths"
)

// EffectiveDateLayout formats {{effectiveDate}}.
const EffectiveDateLayout = "January 2, 2006"

var (
	conditionalPattern = regexp.MustCompile(`(?s)\{\{#if\s+orgType\s*=\s*([^}]*)\}\}(.*?)\{\{/if\}\}`)
	clausePattern      = regexp.MustCompile(`\{\{clause:([A-Za-z0-9_.\-]+)\}\}`)
	clausesPattern     = regexp.MustCompile(`\{\{clauses\}\}`)
	tokenPattern       = regexp.MustCompile(`\{\{([A-Za-z][A-Za-z0-9_.\-]*)\}\}`)
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)
)

// Options carries caller-supplied values.
type Options struct {
	// Jurisdiction fills {{jurisdiction}}.
	Jurisdiction string

	// EffectiveDate fills {{effectiveDate}}. Zero leaves the token fillable.
	EffectiveDate time.Time

	// Fields supplies values for any other token.
	Fields map[string]string
}

// Result is assembled policy text.
type Result struct {
	Title   string
	Content string

	// FillableFields lists tokens left unresolved, each with value "".
	FillableFields map[string]string
}

// Assemble renders tmpl for profile using clauses, which must already be
// filtered and ordered. The output is a pure function of its inputs.
func Assemble(tmpl *policy.Template, profile *policy.OrganizationProfile, clauses []*policy.Clause, opts Options) *Result {
	values := tokenValues(tmpl, profile, opts)
	fillable := make(map[string]string)

	content := renderConditionals(tmpl.Content, profile.Type)
	content = placeClauses(content, clausesFor(clauses, profile.Type))
	content = substitute(content, values, fillable)
	content = blankRunPattern.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content) + "\n"

	title := substitute(renderConditionals(tmpl.Title, profile.Type), values, fillable)

	return &Result{
		Title:          strings.TrimSpace(title),
		Content:        governance.EnsureDisclaimer(content),
		FillableFields: fillable,
	}
}

// RenderClause formats a clause as a second-level section.
func RenderClause(c *policy.Clause) string {
	return "## " + strings.TrimSpace(c.Title) + "\n\n" + strings.TrimSpace(c.Body)
}

func tokenValues(tmpl *policy.Template, profile *policy.OrganizationProfile, opts Options) map[string]string {
	values := make(map[string]string, len(opts.Fields)+6)
	for k, v := range opts.Fields {
		if v != "" {
			values[k] = v
		}
	}

	set := func(key, v string) {
		if v != "" {
			values[key] = v
		}
	}
	set(TokenOrganizationName, profile.Name)
	set(TokenOrganizationType, profile.Type)
	set(TokenState, profile.State)
	set(TokenJurisdiction, opts.Jurisdiction)
	if !opts.EffectiveDate.IsZero() {
		set(TokenEffectiveDate, opts.EffectiveDate.Format(EffectiveDateLayout))
	}
	if tmpl.ReviewCycleMonths > 0 {
		set(TokenReviewCycleMonths, strconv.Itoa(tmpl.ReviewCycleMonths))
	}
	return values
}

func renderConditionals(content, orgType string) string {
	return conditionalPattern.ReplaceAllStringFunc(content, func(block string) string {
		m := conditionalPattern.FindStringSubmatch(block)
		for _, t := range strings.Split(m[1], "|") {
			if strings.TrimSpace(t) == orgType && orgType != "" {
				return m[2]
			}
		}
		return ""
	})
}

// clausesFor returns copies of clauses with the conditional blocks in their
// titles and bodies resolved for orgType.
func clausesFor(clauses []*policy.Clause, orgType string) []*policy.Clause {
	out := make([]*policy.Clause, len(clauses))
	for i, c := range clauses {
		cc := *c
		cc.Title = renderConditionals(c.Title, orgType)
		cc.Body = renderConditionals(c.Body, orgType)
		out[i] = &cc
	}
	return out
}

// placeClauses expands {{clause:<id>}} and {{clauses}}. When the template has
// neither form for a selected clause, the clause is appended at the end.
func placeClauses(content string, clauses []*policy.Clause) string {
	byID := make(map[string]*policy.Clause, len(clauses))
	for _, c := range clauses {
		byID[c.ID] = c
	}

	placed := make(map[string]bool)
	for _, m := range clausePattern.FindAllStringSubmatch(content, -1) {
		if _, ok := byID[m[1]]; ok {
			placed[m[1]] = true
		}
	}

	var rest []string
	for _, c := range clauses {
		if !placed[c.ID] {
			rest = append(rest, RenderClause(c))
		}
	}
	remaining := strings.Join(rest, "\n\n")

	content = clausePattern.ReplaceAllStringFunc(content, func(ph string) string {
		id := clausePattern.FindStringSubmatch(ph)[1]
		if c, ok := byID[id]; ok {
			return RenderClause(c)
		}
		return ""
	})

	if clausesPattern.MatchString(content) {
		expanded := false
		return clausesPattern.ReplaceAllStringFunc(content, func(string) string {
			if expanded {
				return ""
			}
			expanded = true
			return remaining
		})
	}

	if remaining != "" {
		content = strings.TrimRight(content, "\n") + "\n\n" + remaining + "\n"
	}
	return content
}

func substitute(content string, values, fillable map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(content, func(tok string) string {
		name := tokenPattern.FindStringSubmatch(tok)[1]
		if v, ok := values[name]; ok {
			return v
		}
		fillable[name] = ""
		return tok
	})
}
