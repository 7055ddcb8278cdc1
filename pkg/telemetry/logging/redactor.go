package logging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"mercator-hq/charter/pkg/config"
)

// Redactor removes PII from log values. Policy content, profile values and
// document text all pass through logs, and document text in particular
// routinely carries student and staff contact details.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Builtin pattern names.
const (
	PatternEmail       = "email"
	PatternSSN         = "ssn"
	PatternPhone       = "phone"
	PatternCreditCard  = "credit_card"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
)

// builtin patterns in application order; card numbers run before phone
// numbers so a card is not half-consumed as a phone number.
var builtinPatterns = []struct {
	name, regex, replacement string
}{
	{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[email]"},
	{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "***-**-****"},
	{PatternCreditCard, `\b(?:\d[ -]?){12,15}\d\b`, "****-****-****-****"},
	{PatternPhone, `(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "***-***-****"},
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternPassword, `(password|passwd|pwd)[:=]\s*\S+`, "$1: ***"},
}

// sensitiveKeys mark attributes whose values are masked entirely.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "signature",
	"passphrase", "private_key", "ssn", "authorization",
}

// NewRedactor compiles the builtin patterns plus custom ones. Custom patterns
// are applied in name order after the builtins.
func NewRedactor(custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range builtinPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	sorted := append([]config.RedactPattern(nil), custom...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, p := range sorted {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r, nil
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether an attribute key names a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskValue hides a secret, keeping up to four leading characters of long
// values as a hint.
func MaskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
