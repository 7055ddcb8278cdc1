package mapper

import (
	"strings"

	"mercator-hq/charter/pkg/framework"
	"mercator-hq/charter/pkg/framework/extract"
)

const (
	// MinConfidence is the exclusive lower bound for a retained mapping.
	MinConfidence = 0.3

	// MaxEvidence bounds the evidence sentences kept on a mapping.
	MaxEvidence = 10
)

// Outcome is the result of scoring one control.
type Outcome struct {
	Mapping framework.ControlMapping
	// Retained is true when Mapping.Confidence exceeds MinConfidence.
	Retained bool
	// Fallback is true when the control had no rules.
	Fallback bool
	// RuleErrors holds rules that could not be evaluated. They scored 0.
	RuleErrors []error
}

// Mapper scores controls against documents.
type Mapper struct {
	evaluator *extract.Evaluator
}

// New creates a Mapper. A nil evaluator gets a fresh one.
func New(evaluator *extract.Evaluator) *Mapper {
	if evaluator == nil {
		evaluator = extract.NewEvaluator()
	}
	return &Mapper{evaluator: evaluator}
}

// Map scores ctl against the document text.
func (m *Mapper) Map(documentID string, text *extract.Text, ctl *framework.Control) Outcome {
	out := Outcome{
		Mapping: framework.ControlMapping{
			DocumentID: documentID,
			Framework:  ctl.Framework,
			ControlID:  ctl.ID,
		},
	}

	var confidence float64
	var matched []string
	if len(ctl.Rules) == 0 {
		out.Fallback = true
		confidence, matched = overlapScore(text, ctl)
	} else {
		var sum float64
		var nonZero int
		for _, rule := range ctl.Rules {
			res := m.evaluator.Evaluate(text, rule)
			if res.Err != nil {
				out.RuleErrors = append(out.RuleErrors, res.Err)
				continue
			}
			if res.Score > 0 {
				sum += res.Score * rule.Weight
				nonZero++
				matched = append(matched, res.Matched...)
			}
		}
		if nonZero > 0 {
			confidence = sum / float64(nonZero)
		}
	}

	confidence = clamp(confidence)
	out.Mapping.Confidence = confidence
	out.Mapping.Status = framework.StatusFor(confidence)

	evidence := collectEvidence(text.Raw(), matched)
	out.Mapping.Gaps = requirementGaps(ctl.Requirements, evidence)
	if len(evidence) > MaxEvidence {
		evidence = evidence[:MaxEvidence]
	}
	out.Mapping.Evidence = evidence
	out.Retained = confidence > MinConfidence
	return out
}

// overlapScore is the fraction of the control's significant terms that occur
// as words in the document.
func overlapScore(text *extract.Text, ctl *framework.Control) (float64, []string) {
	parts := append([]string{ctl.Title, ctl.Description}, ctl.Requirements...)
	terms := significantTerms(parts...)
	if len(terms) == 0 {
		return 0, nil
	}
	var found []string
	for _, term := range terms {
		if text.HasWord(term) {
			found = append(found, term)
		}
	}
	return float64(len(found)) / float64(len(terms)), found
}

// collectEvidence returns the document sentences containing any matched term,
// in document order.
func collectEvidence(raw string, matched []string) []string {
	if len(matched) == 0 {
		return nil
	}
	var evidence []string
	for _, s := range sentences(raw) {
		lower := strings.ToLower(s)
		for _, term := range matched {
			if term != "" && strings.Contains(lower, term) {
				evidence = append(evidence, s)
				break
			}
		}
	}
	return evidence
}

// requirementGaps returns the requirements that share no significant term
// with any evidence sentence.
func requirementGaps(requirements, evidence []string) []string {
	evidenceWords := map[string]struct{}{}
	for _, s := range evidence {
		for _, w := range extract.Words(s) {
			evidenceWords[w] = struct{}{}
		}
	}

	var gaps []string
	for _, req := range requirements {
		covered := false
		for _, term := range significantTerms(req) {
			if _, ok := evidenceWords[term]; ok {
				covered = true
				break
			}
		}
		if !covered {
			gaps = append(gaps, req)
		}
	}
	return gaps
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
