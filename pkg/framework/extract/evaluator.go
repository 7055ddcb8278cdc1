package extract

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"mercator-hq/charter/pkg/framework"
)

const (
	// patternSaturation is the match count at which a pattern rule scores 1.
	patternSaturation = 5

	missingContextFactor = 0.5
	exclusionFactor      = 0.3
)

// Result is the outcome of evaluating one rule.
type Result struct {
	RuleID string
	Score  float64
	// Matched lists the keywords, terms or matched strings that contributed
	// to the score. Used by the mapper to collect evidence.
	Matched []string
	// Err is set when the rule could not be evaluated. Score is 0 then.
	Err error
}

// PatternError reports an extraction rule whose pattern does not compile.
type PatternError struct {
	RuleID  string
	Pattern string
	Cause   error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	return fmt.Sprintf("rule %q: invalid pattern %q: %v", e.RuleID, e.Pattern, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PatternError) Unwrap() error {
	return e.Cause
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// Evaluator scores rules. It caches compiled patterns and is safe for
// concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	patterns map[string]compiled
}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{patterns: map[string]compiled{}}
}

// Evaluate scores rule against t.
func (e *Evaluator) Evaluate(t *Text, rule framework.ExtractionRule) Result {
	res := Result{RuleID: rule.ID}

	switch rule.Type {
	case framework.RuleKeyword:
		res.Score, res.Matched = keywordScore(t, rule.Pattern)
	case framework.RulePattern:
		re, err := e.compile(rule.Pattern)
		if err != nil {
			res.Err = &PatternError{RuleID: rule.ID, Pattern: rule.Pattern, Cause: err}
			return res
		}
		res.Score, res.Matched = patternScore(t, re)
	case framework.RuleSectionHeader:
		res.Score, res.Matched = headerScore(t, rule.Pattern)
	case framework.RuleSemantic:
		res.Score, res.Matched = semanticScore(t, rule.Pattern)
	default:
		res.Err = fmt.Errorf("rule %q: unknown type %q", rule.ID, rule.Type)
		return res
	}

	if res.Score == 0 {
		return res
	}
	if len(rule.RequiredContext) > 0 && !containsAny(t, rule.RequiredContext) {
		res.Score *= missingContextFactor
	}
	if len(rule.Exclusions) > 0 && containsAny(t, rule.Exclusions) {
		res.Score *= exclusionFactor
	}
	return res
}

func (e *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	e.mu.RLock()
	c, ok := e.patterns[pattern]
	e.mu.RUnlock()
	if ok {
		return c.re, c.err
	}

	re, err := regexp.Compile("(?i)" + pattern)
	e.mu.Lock()
	e.patterns[pattern] = compiled{re: re, err: err}
	e.mu.Unlock()
	return re, err
}

func keywordScore(t *Text, pattern string) (float64, []string) {
	var alternatives, found []string
	for _, alt := range strings.Split(pattern, "|") {
		alt = strings.ToLower(strings.TrimSpace(alt))
		if alt == "" {
			continue
		}
		alternatives = append(alternatives, alt)
		if t.Contains(alt) {
			found = append(found, alt)
		}
	}
	if len(alternatives) == 0 {
		return 0, nil
	}
	return float64(len(found)) / float64(len(alternatives)), found
}

func patternScore(t *Text, re *regexp.Regexp) (float64, []string) {
	matches := re.FindAllString(t.raw, -1)
	if len(matches) == 0 {
		return 0, nil
	}
	seen := map[string]bool{}
	var distinct []string
	for _, m := range matches {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			distinct = append(distinct, m)
		}
	}
	return math.Min(float64(len(matches))/patternSaturation, 1), distinct
}

func headerScore(t *Text, pattern string) (float64, []string) {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return 0, nil
	}
	for _, h := range t.Headers() {
		if strings.Contains(h, p) {
			return 1, []string{p}
		}
	}
	return 0, nil
}

func semanticScore(t *Text, pattern string) (float64, []string) {
	terms := Words(pattern)
	if len(terms) == 0 {
		return 0, nil
	}
	var found []string
	for _, term := range terms {
		if t.HasWord(term) {
			found = append(found, term)
		}
	}
	return float64(len(found)) / float64(len(terms)), found
}

func containsAny(t *Text, phrases []string) bool {
	for _, p := range phrases {
		if t.Contains(p) {
			return true
		}
	}
	return false
}
