package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatCSV is only offered by commands that emit tabular records.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a --format flag against the formats a command
// supports. An empty value selects the first allowed format.
func ParseOutputFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	if len(allowed) == 0 {
		allowed = []OutputFormat{FormatText, FormatJSON}
	}
	if s == "" {
		return allowed[0], nil
	}
	f := OutputFormat(strings.ToLower(s))
	names := make([]string, len(allowed))
	for i, a := range allowed {
		if f == a {
			return f, nil
		}
		names[i] = string(a)
	}
	return "", Usagef("unknown format %q (want %s)", s, strings.Join(names, ", "))
}

// Printer writes command results in the selected format.
type Printer struct {
	w      io.Writer
	format OutputFormat
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, format OutputFormat) *Printer {
	if format == "" {
		format = FormatText
	}
	return &Printer{w: w, format: format}
}

// Format returns the selected format.
func (p *Printer) Format() OutputFormat { return p.format }

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Print writes v as JSON in JSON mode and calls text otherwise. A nil text
// func prints v with %v.
func (p *Printer) Print(v any, text func(w io.Writer) error) error {
	if p.format == FormatJSON {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if text == nil {
		_, err := fmt.Fprintf(p.w, "%v\n", v)
		return err
	}
	return text(p.w)
}

// Printf writes a line in text mode only, so JSON output stays parseable.
func (p *Printer) Printf(format string, args ...any) {
	if p.format == FormatJSON {
		return
	}
	fmt.Fprintf(p.w, format, args...)
}
