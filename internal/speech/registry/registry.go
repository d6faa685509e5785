package registry

import (
	"fmt"
	"sync"

	"github.com/livetranslate/livetranslate/internal/speech/engine"
)

// Factory constructs an engine from a config map. Construction includes
// loading the model, so factories return engine.ErrEngineUnavailable or
// engine.ErrModelLoadFailed (wrapped) on the documented failure modes.
type Factory func(config map[string]string) (engine.Engine, error)

// Registry holds named engine factories, one per backend.
type Registry struct {
	mu        sync.RWMutex
	factories map[engine.Backend]Factory
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[engine.Backend]Factory),
	}
}

// Register adds a factory for the given backend.
func (r *Registry) Register(backend engine.Backend, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create instantiates the engine for the given backend.
func (r *Registry) Create(backend engine.Backend, config map[string]string) (engine.Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[backend]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no engine registered for backend %q", backend)
	}

	return factory(config)
}

// Has returns true if a factory exists for the backend.
func (r *Registry) Has(backend engine.Backend) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[backend]
	return ok
}

// List returns all registered backends.
func (r *Registry) List() []engine.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	backends := make([]engine.Backend, 0, len(r.factories))
	for b := range r.factories {
		backends = append(backends, b)
	}
	return backends
}
