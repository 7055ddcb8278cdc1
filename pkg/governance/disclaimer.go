package governance

import "strings"

// Disclaimer is attached to every generated policy and every error surfaced to
// a caller. It is not configurable.
const Disclaimer = "This document was produced with automated assistance only and does not " +
	"constitute legal advice. Review it with qualified counsel before adoption."

// DisclaimerBanner is the block prepended to assembled policy content.
const DisclaimerBanner = "> **DISCLAIMER:** " + Disclaimer + "\n\n"

// HasDisclaimer reports whether content carries the disclaimer banner at the top.
func HasDisclaimer(content string) bool {
	return strings.HasPrefix(content, DisclaimerBanner)
}

// EnsureDisclaimer prepends the banner if it is missing. Content that already
// starts with the banner is returned unchanged.
func EnsureDisclaimer(content string) string {
	if HasDisclaimer(content) {
		return content
	}
	return DisclaimerBanner + content
}
