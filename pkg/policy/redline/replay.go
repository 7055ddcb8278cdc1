package redline

import (
	"fmt"
	"strings"

	"mercator-hq/charter/pkg/policy"
)

// ReplayError reports a diff that does not apply to the content.
type ReplayError struct {
	DiffID    string
	SectionID string
	Reason    string
}

// Error implements the error interface.
func (e *ReplayError) Error() string {
	return fmt.Sprintf("diff %s on section %q does not apply: %s", e.DiffID, e.SectionID, e.Reason)
}

// Replay applies diffs, as produced by Diff, to original and returns the
// updated content. Deletions are applied first, then modifications, then
// additions in the order given. A deletion or modification whose
// OriginalText no longer matches the section is rejected.
func Replay(original string, diffs []policy.Diff) (string, error) {
	sections := ParseSections(original)

	index := func(id string) int {
		for i, s := range sections {
			if s.ID == id {
				return i
			}
		}
		return -1
	}

	for _, d := range diffs {
		if d.ChangeType != policy.ChangeDeletion {
			continue
		}
		i := index(d.SectionID)
		if i < 0 {
			return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: "section not found"}
		}
		if sections[i].Text != d.OriginalText {
			return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: "section text changed"}
		}
		sections = append(sections[:i], sections[i+1:]...)
	}

	for _, d := range diffs {
		if d.ChangeType != policy.ChangeModification {
			continue
		}
		i := index(d.SectionID)
		if i < 0 {
			return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: "section not found"}
		}
		if sections[i].Text != d.OriginalText {
			return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: "section text changed"}
		}
		sections[i].Text = d.NewText
	}

	for _, d := range diffs {
		switch d.ChangeType {
		case policy.ChangeAddition:
		case policy.ChangeDeletion, policy.ChangeModification:
			continue
		default:
			return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: fmt.Sprintf("unknown change type %q", d.ChangeType)}
		}

		if index(d.SectionID) >= 0 {
			return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: "section already exists"}
		}

		at := 0
		if d.PrecedingSectionID != "" {
			i := index(d.PrecedingSectionID)
			if i < 0 {
				return "", &ReplayError{DiffID: d.ID, SectionID: d.SectionID, Reason: fmt.Sprintf("anchor %q not found", d.PrecedingSectionID)}
			}
			at = i + 1
		}

		added := Section{ID: d.SectionID, Text: d.NewText}
		sections = append(sections, Section{})
		copy(sections[at+1:], sections[at:])
		sections[at] = added
	}

	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.Text)
	}
	return b.String(), nil
}
