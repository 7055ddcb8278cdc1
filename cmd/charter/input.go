package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/charter/pkg/cli"
)

// maxInputSize bounds files read from flags or stdin.
const maxInputSize = 8 << 20

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, cli.Usagef("cannot open %s: %v", path, err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxInputSize {
		return nil, cli.Usagef("%s exceeds %d bytes", path, maxInputSize)
	}
	return data, nil
}

// decodeYAMLFile strictly decodes a YAML (or JSON) file into v.
func decodeYAMLFile(cmd *cobra.Command, path string, v any) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return cli.Usagef("cannot parse %s: %v", path, err)
	}
	return nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty yields
// the zero time.
func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, cli.Usagef("--%s: %q is neither YYYY-MM-DD nor RFC 3339", flag, s)
}
