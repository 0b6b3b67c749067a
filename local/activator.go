package local

import (
	"context"
	"fmt"
	"sync"
)

// Activator holds the lifecycle hooks a module names in its manifest.
//
// Start is required. Stop is optional.
// Hooks run while the container holds its lock and must not call back into the container;
// reading the module passed to them is fine.
type Activator struct {
	Start func(ctx context.Context, m *Module) error
	Stop  func(ctx context.Context, m *Module) error
}

// ActivatorFunc returns an Activator with only a Start hook.
func ActivatorFunc(start func(ctx context.Context, m *Module) error) Activator {
	return Activator{Start: start}
}

// Registry stores activators by name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Activator
}

func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Activator),
	}
}

// DefaultActivators is used by the provider registered in modrun.DefaultRegistry.
var DefaultActivators = NewRegistry()

// Register registers one activator.
func (r *Registry) Register(name string, a Activator) error {
	if r == nil {
		return fmt.Errorf("register activator: registry is nil")
	}
	if name == "" {
		return fmt.Errorf("register activator: name is empty")
	}
	if a.Start == nil {
		return fmt.Errorf("register activator: start func is nil for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		return DuplicateActivatorError{Name: name}
	}
	r.defs[name] = a
	return nil
}

// MustRegister panics on registration error; intended for init functions.
func (r *Registry) MustRegister(name string, a Activator) {
	if err := r.Register(name, a); err != nil {
		panic(err)
	}
}

func (r *Registry) get(name string) (Activator, bool) {
	if r == nil {
		return Activator{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.defs[name]
	return a, ok
}
