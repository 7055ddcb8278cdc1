package catalog

import (
	"fmt"
	"sort"

	"mercator-hq/charter/pkg/framework"
)

// Catalog is an immutable set of frameworks keyed by ID.
type Catalog struct {
	frameworks map[string]*framework.Framework
	controls   map[string]map[string]*framework.Control
}

// New builds a Catalog. Framework IDs and control IDs within a framework must
// be unique. Controls inherit the framework ID of their parent.
func New(frameworks ...framework.Framework) (*Catalog, error) {
	c := empty()
	for _, f := range frameworks {
		if err := c.add(f, "inline"); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func empty() *Catalog {
	return &Catalog{
		frameworks: map[string]*framework.Framework{},
		controls:   map[string]map[string]*framework.Control{},
	}
}

func (c *Catalog) add(f framework.Framework, origin string) error {
	if f.ID == "" {
		return &LoadError{FilePath: origin, Message: "framework without id"}
	}
	if _, ok := c.frameworks[f.ID]; ok {
		return &LoadError{FilePath: origin, Message: fmt.Sprintf("duplicate framework %q", f.ID)}
	}

	f.Controls = append([]framework.Control(nil), f.Controls...)
	byID := make(map[string]*framework.Control, len(f.Controls))
	for i := range f.Controls {
		ctl := &f.Controls[i]
		if ctl.ID == "" {
			return &LoadError{FilePath: origin, Message: fmt.Sprintf("framework %q: control %d has no id", f.ID, i)}
		}
		if _, dup := byID[ctl.ID]; dup {
			return &LoadError{FilePath: origin, Message: fmt.Sprintf("framework %q: duplicate control %q", f.ID, ctl.ID)}
		}
		ctl.Framework = f.ID
		byID[ctl.ID] = ctl
	}

	c.frameworks[f.ID] = &f
	c.controls[f.ID] = byID
	return nil
}

// Framework returns the framework with the given ID.
func (c *Catalog) Framework(id string) (*framework.Framework, bool) {
	f, ok := c.frameworks[id]
	return f, ok
}

// Control returns one control of a framework.
func (c *Catalog) Control(frameworkID, controlID string) (*framework.Control, bool) {
	ctl, ok := c.controls[frameworkID][controlID]
	return ctl, ok
}

// IDs returns the framework IDs sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.frameworks))
	for id := range c.frameworks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Frameworks returns every framework sorted by ID.
func (c *Catalog) Frameworks() []*framework.Framework {
	out := make([]*framework.Framework, 0, len(c.frameworks))
	for _, id := range c.IDs() {
		out = append(out, c.frameworks[id])
	}
	return out
}

// Len returns the number of frameworks.
func (c *Catalog) Len() int {
	return len(c.frameworks)
}

// Merge returns a catalog holding every framework of base and overlay. A
// framework present in both is taken from overlay.
func Merge(base, overlay *Catalog) *Catalog {
	out := empty()
	for _, src := range []*Catalog{base, overlay} {
		if src == nil {
			continue
		}
		for id, f := range src.frameworks {
			out.frameworks[id] = f
			out.controls[id] = src.controls[id]
		}
	}
	return out
}
