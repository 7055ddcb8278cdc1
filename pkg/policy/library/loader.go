package library

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"mercator-hq/charter/pkg/policy"
)

// MaxFileSize bounds a single library file.
const MaxFileSize = 4 << 20

// document is the on-disk shape of one library file.
type document struct {
	Templates []policy.Template           `yaml:"templates"`
	Clauses   []policy.Clause             `yaml:"clauses"`
	Workflows []policy.WorkflowDefinition `yaml:"workflows"`
}

// Load reads a library from a YAML file or a directory of YAML files.
// Hidden files and directories are skipped. Every file is read even when an
// earlier one fails, and all problems are returned together.
func Load(path string) (*Library, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to access path", Cause: err}
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = collectFiles(path); err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, &LoadError{FilePath: path, Message: "no library files found in directory"}
		}
	}

	b := newBuilder()
	for _, f := range files {
		doc, err := readFile(f)
		if err != nil {
			b.errs.Add(err)
			continue
		}
		for _, t := range doc.Templates {
			b.addTemplate(t, f)
		}
		for _, c := range doc.Clauses {
			b.addClause(c, f)
		}
		for _, w := range doc.Workflows {
			b.addWorkflow(w, f)
		}
	}

	lib, err := b.build()
	if err != nil {
		return nil, err
	}
	lib.Source = path
	return lib, nil
}

// Parse decodes a single library document.
func Parse(data []byte) (*Library, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	return New(doc.Templates, doc.Clauses, doc.Workflows)
}

func readFile(path string) (*document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if info.Size() > MaxFileSize {
		return nil, &LoadError{FilePath: path, Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxFileSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: path, Message: "file contains invalid UTF-8 encoding"}
	}

	doc, err := decode(data)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "YAML parsing failed", Cause: err}
	}
	return doc, nil
}

func decode(data []byte) (*document, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &doc, nil
}

// collectFiles returns the YAML files under dir in lexical order.
func collectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if IsLibraryFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: dir, Message: "failed to walk directory", Cause: err}
	}

	sort.Strings(files)
	return files, nil
}

// IsLibraryFile reports whether path has a library file extension.
func IsLibraryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
