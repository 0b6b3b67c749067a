package local

import (
	"context"
	"sync"
)

// State is the lifecycle state of a module.
type State int

const (
	StateInstalled State = iota
	StateResolved
	StateActive
	StateUninstalled
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateResolved:
		return "resolved"
	case StateActive:
		return "active"
	case StateUninstalled:
		return "uninstalled"
	default:
		return "unknown"
	}
}

// Module is the handle for one installed archive. It implements modrun.Module.
type Module struct {
	c  *Container
	id string

	mu       sync.RWMutex
	location string
	path     string
	manifest Manifest
	state    State
	// problem explains why the last resolution left the module installed.
	problem error
}

func (m *Module) ID() string { return m.id }

func (m *Module) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest.Name
}

func (m *Module) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest.Version
}

func (m *Module) Location() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.location
}

func (m *Module) IsAttachment() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest.IsAttachment()
}

// Manifest returns a copy of the current manifest.
func (m *Module) Manifest() Manifest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mf := m.manifest
	mf.Requires = append([]string(nil), m.manifest.Requires...)
	return mf
}

func (m *Module) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Problem returns why the module is still unresolved after the last relink, if it is.
func (m *Module) Problem() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.problem
}

func (m *Module) String() string {
	name := m.Name()
	if name == "" {
		name = "<unnamed>"
	}
	return name + " [" + m.id + "]"
}

// Start resolves the module if needed and runs its activator.
func (m *Module) Start(ctx context.Context) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.c.startLocked(ctx, m)
}

// Update reloads the module from uri. An active module is stopped, reloaded and started again.
// Changed requirements take effect on the next relink.
func (m *Module) Update(ctx context.Context, uri string) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.c.updateLocked(ctx, m, uri)
}

// Uninstall stops the module if needed and removes it from the container.
func (m *Module) Uninstall(ctx context.Context) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	return m.c.uninstallLocked(ctx, m)
}

func (m *Module) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Module) setProblem(err error) {
	m.mu.Lock()
	m.problem = err
	m.mu.Unlock()
}
