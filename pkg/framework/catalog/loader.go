package catalog

import (
	"bytes"
	"embed"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/charter/pkg/framework"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

type document struct {
	Frameworks []framework.Framework `yaml:"frameworks"`
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the catalogs compiled into the binary.
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = loadFS(builtinFS, "builtin")
	})
	return builtin, builtinErr
}

func loadFS(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, &LoadError{FilePath: dir, Message: "failed to read directory", Cause: err}
	}
	c := empty()
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		name := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, &LoadError{FilePath: name, Message: "failed to read file", Cause: err}
		}
		if err := c.addDocument(data, name); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Load reads catalogs from YAML files or directories. Every path is read and
// all errors are returned together.
func Load(paths ...string) (*Catalog, error) {
	c := empty()
	var errs []error
	for _, p := range paths {
		files, err := collect(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				errs = append(errs, &LoadError{FilePath: f, Message: "failed to read file", Cause: err})
				continue
			}
			if err := c.addDocument(data, f); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse reads a single catalog document.
func Parse(data []byte) (*Catalog, error) {
	c := empty()
	if err := c.addDocument(data, "inline"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) addDocument(data []byte, origin string) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return &LoadError{FilePath: origin, Message: "invalid YAML", Cause: err}
	}
	for _, f := range doc.Frameworks {
		if err := c.add(f, origin); err != nil {
			return err
		}
	}
	return nil
}

func collect(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &LoadError{FilePath: root, Message: "failed to access path", Cause: err}
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && isYAML(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: root, Message: "failed to walk directory", Cause: err}
	}
	sort.Strings(files)
	return files, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
