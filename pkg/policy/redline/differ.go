// Package redline computes section-level diffs between two revisions of
// policy content and replays them.
package redline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/charter/pkg/policy"
)

// diffNamespace seeds deterministic diff IDs.
var diffNamespace = uuid.MustParse("3d7c58a4-8f0e-4b8e-9a57-6b1f0c2e91d4")

// approvalKeywords mark sections whose changes need sign-off.
var approvalKeywords = []string{"compliance", "privacy", "security", "definitions"}

// Options annotates the diffs produced by Diff.
type Options struct {
	// Version is the policy version the diffs will produce.
	Version             int
	Rationale           string
	SourceJustification string
	Author              string
	CreatedAt           time.Time
}

// Diff compares original and updated content section by section. Sections
// present only in updated are additions, sections present only in original
// are deletions, and sections whose text differs are modifications.
// Identical sections produce nothing. A shared section that moved relative to
// the others is reported as a deletion plus an addition so that Replay can
// restore the new order.
//
// Diff is a pure function of its inputs.
func Diff(original, updated string, opts Options) []policy.Diff {
	orig := ParseSections(original)
	upd := ParseSections(updated)

	origByID := make(map[string]Section, len(orig))
	for _, s := range orig {
		origByID[s.ID] = s
	}
	updIDs := make(map[string]bool, len(upd))
	for _, s := range upd {
		updIDs[s.ID] = true
	}

	stable := stableSections(orig, upd)

	var diffs []policy.Diff

	for _, s := range orig {
		if !updIDs[s.ID] || !stable[s.ID] {
			diffs = append(diffs, newDiff(opts, policy.ChangeDeletion, s.ID, s.Text, "", ""))
		}
	}

	prev := ""
	for _, s := range upd {
		o, shared := origByID[s.ID]
		switch {
		case !shared || !stable[s.ID]:
			diffs = append(diffs, newDiff(opts, policy.ChangeAddition, s.ID, "", s.Text, prev))
		case o.Text != s.Text:
			diffs = append(diffs, newDiff(opts, policy.ChangeModification, s.ID, o.Text, s.Text, ""))
		}
		prev = s.ID
	}

	return diffs
}

// RequiresApproval reports whether a change to sectionID of the given type
// needs approval.
func RequiresApproval(sectionID string, change policy.ChangeType) bool {
	if change == policy.ChangeDeletion {
		return true
	}
	id := strings.ToLower(sectionID)
	for _, kw := range approvalKeywords {
		if strings.Contains(id, kw) {
			return true
		}
	}
	return false
}

// AnyRequiresApproval reports whether any diff needs approval.
func AnyRequiresApproval(diffs []policy.Diff) bool {
	for _, d := range diffs {
		if d.ApprovalRequired {
			return true
		}
	}
	return false
}

// DiffID returns the deterministic ID for a diff.
func DiffID(version int, sectionID string, change policy.ChangeType) string {
	name := fmt.Sprintf("%d/%s/%s", version, sectionID, change)
	return uuid.NewSHA1(diffNamespace, []byte(name)).String()
}

func newDiff(opts Options, change policy.ChangeType, sectionID, oldText, newText, preceding string) policy.Diff {
	return policy.Diff{
		ID:                  DiffID(opts.Version, sectionID, change),
		Version:             opts.Version,
		ChangeType:          change,
		SectionID:           sectionID,
		OriginalText:        oldText,
		NewText:             newText,
		Rationale:           opts.Rationale,
		SourceJustification: opts.SourceJustification,
		ApprovalRequired:    RequiresApproval(sectionID, change),
		PrecedingSectionID:  preceding,
		Author:              opts.Author,
		CreatedAt:           opts.CreatedAt,
	}
}

// stableSections returns the shared section IDs that keep their relative
// order: the longest common subsequence of the two ID sequences.
func stableSections(orig, upd []Section) map[string]bool {
	inUpd := make(map[string]bool, len(upd))
	for _, s := range upd {
		inUpd[s.ID] = true
	}
	inOrig := make(map[string]bool, len(orig))
	for _, s := range orig {
		inOrig[s.ID] = true
	}

	var a, b []string
	for _, s := range orig {
		if inUpd[s.ID] {
			a = append(a, s.ID)
		}
	}
	for _, s := range upd {
		if inOrig[s.ID] {
			b = append(b, s.ID)
		}
	}

	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	stable := make(map[string]bool, lcs[0][0])
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			stable[a[i]] = true
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	return stable
}
