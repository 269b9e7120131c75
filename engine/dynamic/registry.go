package dynamic

import (
	"github.com/spaghettifunk/gantry/engine/core"
)

// Registry is the process-wide key → dynamic asset mapping. It is never
// cleared automatically; registering an existing key replaces the prior
// descriptor.
type Registry struct {
	assets map[string]Asset
}

func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[string]Asset),
	}
}

// Register inserts or overwrites the descriptor for key.
func (r *Registry) Register(key string, asset Asset) {
	if _, exists := r.assets[key]; exists {
		core.LogDebug("dynamic registry - overwriting key '%s'", key)
	}
	r.assets[key] = asset
}

// Lookup returns the descriptor for key, if registered.
func (r *Registry) Lookup(key string) (Asset, bool) {
	a, ok := r.assets[key]
	return a, ok
}

func (r *Registry) Len() int {
	return len(r.assets)
}
