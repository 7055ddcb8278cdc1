package mapper

import (
	"strings"

	"mercator-hq/charter/pkg/framework/extract"
)

// minTermLength excludes short function words from significant terms.
const minTermLength = 4

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "also": {}, "been": {}, "before": {}, "being": {},
	"each": {}, "from": {}, "have": {}, "into": {}, "must": {}, "only": {},
	"other": {}, "shall": {}, "should": {}, "such": {}, "than": {}, "that": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "under": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "will": {}, "with": {}, "within": {}, "would": {},
}

// significantTerms returns the distinct lowercased words of s that carry
// meaning, in first-seen order.
func significantTerms(parts ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		for _, w := range extract.Words(p) {
			if len(w) < minTermLength || seen[w] {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// sentences splits text at sentence punctuation and line breaks. Markdown
// header markers are stripped and empty sentences dropped.
func sentences(text string) []string {
	var out []string
	start := 0
	flush := func(end int) {
		s := strings.TrimSpace(text[start:end])
		s = strings.Join(strings.Fields(strings.TrimLeft(s, "#")), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			flush(i + 1)
			start = i + 1
		case '\n':
			if (i+1 < len(text) && text[i+1] == '\n') || isHeaderLine(text[start:i]) {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(text))
	return out
}

func isHeaderLine(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "#")
}
