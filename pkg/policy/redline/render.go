package redline

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"mercator-hq/charter/pkg/policy"
)

// Render formats diffs as a markdown redline for reviewers. Modifications are
// shown inline with <del> and <ins> markup.
func Render(diffs []policy.Diff) string {
	var b strings.Builder
	for i, d := range diffs {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "### %s `%s`", strings.ToUpper(string(d.ChangeType)), d.SectionID)
		if d.ApprovalRequired {
			b.WriteString(" (approval required)")
		}
		b.WriteString("\n\n")
		if d.Rationale != "" {
			fmt.Fprintf(&b, "_Rationale:_ %s\n\n", d.Rationale)
		}

		switch d.ChangeType {
		case policy.ChangeAddition:
			b.WriteString("<ins>" + d.NewText + "</ins>\n")
		case policy.ChangeDeletion:
			b.WriteString("<del>" + d.OriginalText + "</del>\n")
		default:
			b.WriteString(InlineDiff(d.OriginalText, d.NewText))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// InlineDiff marks up the character-level difference between two texts,
// cleaned up to word-sized edits.
func InlineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			b.WriteString("<ins>" + d.Text + "</ins>")
		case diffmatchpatch.DiffDelete:
			b.WriteString("<del>" + d.Text + "</del>")
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
