package kernel

import (
	"sync"

	"github.com/oracipher/kernel/plugin"
)

// PluginMeta is one discovered bundle's record (spec.md S3). Invariant:
// active ⇔ instance ≠ nil ∧ facade ≠ nil ∧ moduleHandle ≠ nil. name is
// unique across the registry; dependencies is immutable for the duration
// of one active lifecycle — a rescan always refreshes Path and EntryFile,
// but changes Version/Dependencies/Settings only on an inactive record.
type PluginMeta struct {
	Name         string
	Path         string
	Version      plugin.Version
	Dependencies []plugin.Requirement
	EntryFile    string
	Settings     map[string]any // raw config.json, backing Facade.PluginConfig()

	moduleHandle moduleHandle
	instance     plugin.Instance
	facade       *facade
	active       bool
	state        plugin.PluginState
	loadTag      string // unique module-cache key for this load generation
	lastErr      error
}

func (m *PluginMeta) Active() bool {
	return m.active
}

func (m *PluginMeta) State() plugin.PluginState {
	return m.state
}

func (m *PluginMeta) LastError() error {
	return m.lastErr
}

// metaRegistry is the kernel's map of discovered plugins, keyed by name,
// preserving insertion (scan) order for deterministic resolver ties
// (spec.md S4.2).
type metaRegistry struct {
	mu    sync.RWMutex
	byName map[string]*PluginMeta
	order  []string // insertion order
}

func newMetaRegistry() *metaRegistry {
	return &metaRegistry{byName: make(map[string]*PluginMeta)}
}

// upsert adds a new record or, for an existing one, applies the
// non-destructive rescan rule from spec.md S4.1: active records only have
// their inactive-field portion touched; instance/facade/moduleHandle/active
// are left alone.
func (r *metaRegistry) upsert(fresh *PluginMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byName[fresh.Name]
	if !ok {
		r.byName[fresh.Name] = fresh
		r.order = append(r.order, fresh.Name)
		return
	}

	existing.Path = fresh.Path
	existing.EntryFile = fresh.EntryFile
	if !existing.active {
		existing.Version = fresh.Version
		existing.Dependencies = fresh.Dependencies
		existing.Settings = fresh.Settings
	}
}

func (r *metaRegistry) get(name string) (*PluginMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// orderedNames returns every known plugin name in scan (insertion) order.
func (r *metaRegistry) orderedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *metaRegistry) snapshot() map[string]*PluginMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*PluginMeta, len(r.byName))
	for k, v := range r.byName {
		out[k] = v
	}
	return out
}
