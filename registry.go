package modrun

import (
	"context"
	"fmt"
	"sync"
)

// Registry stores container providers by name, in registration order.
type Registry struct {
	mu        sync.RWMutex
	names     []string
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// DefaultRegistry is the process-wide provider table.
// Provider packages register themselves into it from init.
var DefaultRegistry = NewRegistry()

// Register adds a named provider.
func (r *Registry) Register(name string, p Provider) error {
	if r == nil {
		return fmt.Errorf("register container provider: registry is nil")
	}
	if name == "" {
		return fmt.Errorf("register container provider: name is empty")
	}
	if p == nil {
		return fmt.Errorf("register container provider: provider is nil for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		return DuplicateProviderError{Name: name}
	}
	r.providers[name] = p
	r.names = append(r.names, name)
	return nil
}

// MustRegister panics on registration error; intended for init functions.
func (r *Registry) MustRegister(name string, p Provider) {
	if err := r.Register(name, p); err != nil {
		panic(err)
	}
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ProviderNotFoundError{Name: name}
	}
	return p, nil
}

// Register adds a provider to DefaultRegistry.
func Register(name string, p Provider) error {
	return DefaultRegistry.Register(name, p)
}

// MustRegister adds a provider to DefaultRegistry and panics on error.
func MustRegister(name string, p Provider) {
	DefaultRegistry.MustRegister(name, p)
}

// ResolveProvider returns the first registered provider.
// ErrNoProvider is returned when the registry is empty.
func ResolveProvider(r *Registry) (string, Provider, error) {
	if r == nil {
		return "", nil, ErrNoProvider
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.names) == 0 {
		return "", nil, ErrNoProvider
	}
	name := r.names[0]
	return name, r.providers[name], nil
}

// Open builds a container from p and brings it up: Init, then Start.
// No module is installed yet when Open returns.
func Open(ctx context.Context, p Provider, props Properties) (Container, error) {
	if p == nil {
		return nil, fmt.Errorf("open container: provider is nil")
	}
	c, err := p.NewContainer(props.Clone())
	if err != nil {
		return nil, fmt.Errorf("new container: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("new container: provider returned nil")
	}
	if err := c.Init(ctx); err != nil {
		return nil, fmt.Errorf("init container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}
	return c, nil
}
