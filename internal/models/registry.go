package models

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Ref names an implementation the way the catalog does.
type Ref struct {
	File  string
	Class string
}

func (r Ref) String() string { return r.File + "." + r.Class }

// Registry holds model constructors keyed by file and class.
type Registry struct {
	constructors map[Ref]Constructor
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[Ref]Constructor)}
}

// normalizeFile reduces "models/chat_gpt.py" to "chat_gpt".
func normalizeFile(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Register adds a constructor under file and class.
func (r *Registry) Register(file, class string, c Constructor) {
	r.constructors[Ref{File: normalizeFile(file), Class: class}] = c
}

// Get returns the constructor for file and class.
func (r *Registry) Get(file, class string) (Constructor, bool) {
	c, ok := r.constructors[Ref{File: normalizeFile(file), Class: class}]
	return c, ok
}

// Resolve reports whether file and class name a registered model.
func (r *Registry) Resolve(file, class string) error {
	if _, ok := r.Get(file, class); !ok {
		return fmt.Errorf("class %s not found in model file %s or is not a registered model", class, file)
	}
	return nil
}

// New builds the model registered under file and class.
func (r *Registry) New(file, class string, opts Options) (Model, error) {
	c, ok := r.Get(file, class)
	if !ok {
		return nil, r.Resolve(file, class)
	}
	m, err := c(opts)
	if err != nil {
		return nil, fmt.Errorf("create %s.%s: %w", normalizeFile(file), class, err)
	}
	return m, nil
}

// All returns every registered reference in sorted order.
func (r *Registry) All() []Ref {
	out := make([]Ref, 0, len(r.constructors))
	for ref := range r.constructors {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
