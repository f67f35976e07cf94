// Package backend connects the web UI to the catalog, the model registry
// and the group pipeline. It owns the per-session state those pages edit.
package backend

import (
	"github.com/user/chatverse/internal/catalog"
	"github.com/user/chatverse/internal/group"
	"github.com/user/chatverse/internal/metrics"
	"github.com/user/chatverse/internal/models"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

// CatalogSource yields the catalog new sessions are seeded from.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Backend is shared by every session. It holds no session data itself.
type Backend struct {
	source    CatalogSource
	registry  *models.Registry
	pipeline  *group.Pipeline
	artifacts types.ArtifactStore
	metrics   *metrics.Metrics
	defaults  map[string]any
}

// New wires a Backend. m may be nil.
func New(source CatalogSource, registry *models.Registry, pipeline *group.Pipeline, artifacts types.ArtifactStore, m *metrics.Metrics) *Backend {
	return &Backend{
		source:    source,
		registry:  registry,
		pipeline:  pipeline,
		artifacts: artifacts,
		metrics:   m,
	}
}

// GetModels returns session copies of the configured models.
func (b *Backend) GetModels() []*schema.ModelMetaInfo {
	src := b.source.Current().Models()
	out := make([]*schema.ModelMetaInfo, len(src))
	for i, m := range src {
		out[i] = m.Clone()
	}
	return out
}

// GetGroupAgents returns session copies of the configured group agents.
func (b *Backend) GetGroupAgents() []*schema.GroupAgent {
	src := b.source.Current().GroupAgents()
	out := make([]*schema.GroupAgent, len(src))
	for i, g := range src {
		out[i] = g.Clone()
	}
	return out
}

// BaseDir is where model and agent assets live.
func (b *Backend) BaseDir() string {
	return b.source.Current().BaseDir()
}

// SetSharedDefaults sets values every new session starts with. The
// catalog's SharedState wins over them.
func (b *Backend) SetSharedDefaults(values map[string]any) {
	b.defaults = schema.CloneMap(values)
}

// NewState seeds a session from the current catalog.
func (b *Backend) NewState() *State {
	shared := schema.CloneMap(b.defaults)
	if shared == nil {
		shared = map[string]any{}
	}
	for k, v := range b.source.Current().SharedState() {
		shared[k] = v
	}
	return &State{
		Shared:      shared,
		Models:      b.GetModels(),
		GroupAgents: b.GetGroupAgents(),
		Settings:    map[string]*schema.GroupSetting{},
	}
}
