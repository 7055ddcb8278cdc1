package selector

import (
	"fmt"
	"strconv"

	"mercator-hq/charter/pkg/policy"
)

// EvaluateRule tests a single selection rule against the profile.
// Absent profile values and non-numeric values under a numeric operator fail
// the rule rather than erroring.
func EvaluateRule(rule policy.SelectionRule, profile *policy.OrganizationProfile) bool {
	actual, ok := profile.Value(rule.Field)
	if !ok {
		return false
	}

	switch rule.Operator {
	case policy.OpEquals:
		return actual == rule.Value()

	case policy.OpIn:
		for _, v := range rule.Values {
			if actual == v {
				return true
			}
		}
		return false

	case policy.OpLessThan:
		a, e, err := toNumeric(actual, rule.Value())
		if err != nil {
			return false
		}
		return a < e

	case policy.OpGreaterThan:
		a, e, err := toNumeric(actual, rule.Value())
		if err != nil {
			return false
		}
		return a > e
	}

	return false
}

// EvaluateRules reports whether every rule passes. A clause with no rules is
// always selected.
func EvaluateRules(rules []policy.SelectionRule, profile *policy.OrganizationProfile) bool {
	for _, rule := range rules {
		if !EvaluateRule(rule, profile) {
			return false
		}
	}
	return true
}

func toNumeric(actual, expected string) (float64, float64, error) {
	a, err := strconv.ParseFloat(actual, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("profile value %q is not numeric", actual)
	}
	e, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("rule value %q is not numeric", expected)
	}
	return a, e, nil
}
