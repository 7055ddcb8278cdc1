package extract

import (
	"strings"
	"unicode"
)

// Text is document text prepared for repeated rule evaluation.
type Text struct {
	raw     string
	lower   string
	headers []string
	words   map[string]struct{}
}

// NewText prepares s. Preparing once and evaluating many rules avoids
// re-lowercasing and re-tokenizing the document per rule.
func NewText(s string) *Text {
	t := &Text{
		raw:   s,
		lower: strings.ToLower(s),
		words: map[string]struct{}{},
	}
	for _, line := range strings.Split(t.lower, "\n") {
		if h, ok := headerText(line); ok {
			t.headers = append(t.headers, h)
		}
	}
	for _, w := range Words(t.lower) {
		t.words[w] = struct{}{}
	}
	return t
}

// Raw returns the original text.
func (t *Text) Raw() string { return t.raw }

// Contains reports whether the lowercased text contains phrase
// (compared case-insensitively).
func (t *Text) Contains(phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	return phrase != "" && strings.Contains(t.lower, phrase)
}

// HasWord reports whether w occurs as a whole word.
func (t *Text) HasWord(w string) bool {
	_, ok := t.words[strings.ToLower(w)]
	return ok
}

// Headers returns the lowercased text of every markdown header line.
func (t *Text) Headers() []string {
	return t.headers
}

// headerText returns the text of a markdown header line ("## Title").
func headerText(line string) (string, bool) {
	line = strings.TrimSpace(line)
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return "", false
	}
	rest := line[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// Words splits s into lowercased runs of letters and digits.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
