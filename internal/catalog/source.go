package catalog

import (
	"context"
	"sync/atomic"
)

// Source holds the current catalog for a file and swaps it on reload.
type Source struct {
	path     string
	baseDir  string
	resolver Resolver
	current  atomic.Pointer[Catalog]
}

// NewSource loads the catalog at path once; a load error is returned as is.
func NewSource(path, baseDir string, resolver Resolver) (*Source, error) {
	s := &Source{path: path, baseDir: baseDir, resolver: resolver}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the most recently loaded catalog.
func (s *Source) Current() *Catalog {
	return s.current.Load()
}

// Reload re-reads the file. The previous catalog stays current on error.
func (s *Source) Reload() error {
	c, err := Load(s.path, s.baseDir, s.resolver)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Watch reloads the catalog whenever its file changes.
func (s *Source) Watch(ctx context.Context) error {
	return Watch(ctx, s.path, s.Reload)
}
