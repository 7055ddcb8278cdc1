package library

import (
	"sort"
	"sync/atomic"

	"mercator-hq/charter/pkg/policy"
)

// Library is an immutable snapshot of templates, clauses and workflows.
// Values returned by its accessors must not be modified.
type Library struct {
	templates map[string]*policy.Template
	clauses   map[string]*policy.Clause
	workflows map[string]*policy.WorkflowDefinition

	// Source describes where the snapshot came from (a path, or a path and
	// commit SHA for git-sourced libraries).
	Source string
}

// New builds a Library. IDs must be unique within each kind.
func New(templates []policy.Template, clauses []policy.Clause, workflows []policy.WorkflowDefinition) (*Library, error) {
	b := newBuilder()
	for i := range templates {
		b.addTemplate(templates[i], "inline")
	}
	for i := range clauses {
		b.addClause(clauses[i], "inline")
	}
	for i := range workflows {
		b.addWorkflow(workflows[i], "inline")
	}
	return b.build()
}

// Empty returns a library with no content.
func Empty() *Library {
	return &Library{
		templates: map[string]*policy.Template{},
		clauses:   map[string]*policy.Clause{},
		workflows: map[string]*policy.WorkflowDefinition{},
	}
}

// Template returns the template with the given ID.
func (l *Library) Template(id string) (*policy.Template, bool) {
	t, ok := l.templates[id]
	return t, ok
}

// Clause returns the clause with the given ID.
func (l *Library) Clause(id string) (*policy.Clause, bool) {
	c, ok := l.clauses[id]
	return c, ok
}

// Workflow returns the approval workflow registered for a template.
func (l *Library) Workflow(templateID string) (*policy.WorkflowDefinition, bool) {
	w, ok := l.workflows[templateID]
	return w, ok
}

// Templates returns every template sorted by ID.
func (l *Library) Templates() []*policy.Template {
	out := make([]*policy.Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clauses returns every clause sorted by ID.
func (l *Library) Clauses() []*policy.Clause {
	out := make([]*policy.Clause, 0, len(l.clauses))
	for _, c := range l.clauses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Workflows returns every workflow sorted by template ID.
func (l *Library) Workflows() []*policy.WorkflowDefinition {
	out := make([]*policy.WorkflowDefinition, 0, len(l.workflows))
	for _, w := range l.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateID < out[j].TemplateID })
	return out
}

// WithClause returns a new snapshot in which c replaces (or adds) the clause
// with its ID. The receiver is unchanged.
func (l *Library) WithClause(c policy.Clause) *Library {
	next := &Library{
		templates: l.templates,
		workflows: l.workflows,
		clauses:   make(map[string]*policy.Clause, len(l.clauses)+1),
		Source:    l.Source,
	}
	for id, existing := range l.clauses {
		next.clauses[id] = existing
	}
	c.Rules = append([]policy.SelectionRule(nil), c.Rules...)
	c.DependsOn = append([]string(nil), c.DependsOn...)
	next.clauses[c.ID] = &c
	return next
}

// Stats summarizes a snapshot for logs.
type Stats struct {
	Templates int
	Clauses   int
	Workflows int
}

// Stats returns the number of entries of each kind.
func (l *Library) Stats() Stats {
	return Stats{Templates: len(l.templates), Clauses: len(l.clauses), Workflows: len(l.workflows)}
}

// Holder publishes the current library snapshot to concurrent readers.
type Holder struct {
	current atomic.Pointer[Library]
}

// NewHolder creates a Holder serving lib.
func NewHolder(lib *Library) *Holder {
	h := &Holder{}
	if lib == nil {
		lib = Empty()
	}
	h.current.Store(lib)
	return h
}

// Load returns the current snapshot.
func (h *Holder) Load() *Library {
	return h.current.Load()
}

// Store publishes a new snapshot.
func (h *Holder) Store(lib *Library) {
	h.current.Store(lib)
}

// Publish implements Publisher.
func (h *Holder) Publish(lib *Library) error {
	h.Store(lib)
	return nil
}

// CompareAndSwap publishes next only if old is still current.
func (h *Holder) CompareAndSwap(old, next *Library) bool {
	return h.current.CompareAndSwap(old, next)
}

type builder struct {
	lib     *Library
	origins map[string]string
	errs    ErrorList
}

func newBuilder() *builder {
	return &builder{lib: Empty(), origins: map[string]string{}}
}

func (b *builder) seen(kind, id, file string) bool {
	key := kind + "/" + id
	if prev, ok := b.origins[key]; ok {
		b.errs.Add(&DuplicateError{Kind: kind, ID: id, Files: []string{prev, file}})
		return true
	}
	b.origins[key] = file
	return false
}

func (b *builder) addTemplate(t policy.Template, file string) {
	if !b.seen("template", t.ID, file) {
		b.lib.templates[t.ID] = &t
	}
}

func (b *builder) addClause(c policy.Clause, file string) {
	if !b.seen("clause", c.ID, file) {
		b.lib.clauses[c.ID] = &c
	}
}

func (b *builder) addWorkflow(w policy.WorkflowDefinition, file string) {
	if w.Mode == "" {
		w.Mode = policy.WorkflowParallel
	}
	if !b.seen("workflow", w.TemplateID, file) {
		b.lib.workflows[w.TemplateID] = &w
	}
}

func (b *builder) build() (*Library, error) {
	if err := b.errs.Err(); err != nil {
		return nil, err
	}
	return b.lib, nil
}
