package recorder

import "unicode/utf8"

// TruncateString shortens s to at most maxLen bytes, appending "..." when it
// cuts. It never splits a UTF-8 sequence.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}

	cut := maxLen
	suffix := "..."
	if maxLen <= len(suffix) {
		suffix = ""
	} else {
		cut = maxLen - len(suffix)
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}
