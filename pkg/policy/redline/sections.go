package redline

import (
	"strconv"
	"strings"
)

// PreambleID identifies text that precedes the first header.
const PreambleID = "preamble"

// Section is a slice of policy content that starts at a markdown header and
// runs to the next one. Text includes the header line and trailing newlines,
// so concatenating the Text of every section returns the original content.
type Section struct {
	ID     string
	Header string
	Level  int
	Text   string
}

// ParseSections splits content into sections. Header lines inside fenced
// code blocks are not treated as section boundaries.
func ParseSections(content string) []Section {
	if content == "" {
		return nil
	}

	var (
		sections []Section
		cur      *Section
		buf      strings.Builder
		inFence  bool
		ids      = newIDAllocator()
	)

	flush := func() {
		if cur == nil && buf.Len() == 0 {
			return
		}
		if cur == nil {
			cur = &Section{ID: ids.next(PreambleID)}
		}
		cur.Text = buf.String()
		sections = append(sections, *cur)
		buf.Reset()
		cur = nil
	}

	for _, line := range strings.SplitAfter(content, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimRight(line, "\r\n")
		// Fences are assumed balanced; an unclosed fence runs to the end of
		// the content, so later headers stay in the current section.
		if strings.HasPrefix(strings.TrimSpace(trimmed), "```") {
			inFence = !inFence
		}
		if !inFence {
			if level, title, ok := parseHeader(trimmed); ok {
				flush()
				cur = &Section{ID: ids.next(Slug(title)), Header: title, Level: level}
			}
		}
		buf.WriteString(line)
	}
	flush()

	return sections
}

// parseHeader recognizes ATX headers: one to six '#' followed by a space or
// end of line.
func parseHeader(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest := line[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	return level, title, true
}

// Slug lowercases s and joins its alphanumeric runs with '-'.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}

type idAllocator map[string]int

func newIDAllocator() idAllocator { return make(idAllocator) }

func (a idAllocator) next(base string) string {
	a[base]++
	n := a[base]
	if n == 1 {
		return base
	}
	id := base + "-" + strconv.Itoa(n)
	// "policy-2" may also be a literal heading; keep going until free.
	for a[id] > 0 {
		n++
		a[base] = n
		id = base + "-" + strconv.Itoa(n)
	}
	a[id]++
	return id
}
