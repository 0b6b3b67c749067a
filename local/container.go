package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/chenyanchen/modrun"
)

// PropGraphFile names a file the DOT wiring graph is written to after every relink.
const PropGraphFile = "local.graph"

type containerState uint8

const (
	stateCreated containerState = iota
	stateInitialized
	stateActive
	stateStopped
)

// Container is an in-process module container. It implements modrun.Container.
//
// Modules are zip archives described by a manifest (see ReadManifest). Lifecycle hooks come
// from the activator registry; a module without an activator starts as a pure state change.
type Container struct {
	props      modrun.Properties
	activators *Registry
	logger     *slog.Logger

	mu         sync.Mutex
	state      containerState
	modules    []*Module
	byLocation map[string]*Module
	// wiring is the latest resolution; linked is the one made by the last Relink.
	wiring wiring
	linked wiring

	stopped chan struct{}
	stopErr error
	sf      singleflight.Group
}

// Option configures a Container.
type Option func(*Container)

// WithActivators sets the activator registry. Defaults to DefaultActivators.
func WithActivators(r *Registry) Option {
	return func(c *Container) {
		if r != nil {
			c.activators = r
		}
	}
}

// WithLogger sets the container logger. Defaults to the logger carried by each call's context.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

func New(props modrun.Properties, opts ...Option) *Container {
	c := &Container{
		props:      props.Clone(),
		activators: DefaultActivators,
		byLocation: make(map[string]*Module),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Container) log(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return modrun.LoggerFromContext(ctx)
}

// Property returns a container property.
func (c *Container) Property(key string) string {
	return c.props[key]
}

func (c *Container) Init(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateStopped:
		return ErrContainerStopped
	case stateCreated:
		c.state = stateInitialized
	}
	return nil
}

func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateStopped:
		return ErrContainerStopped
	case stateCreated:
		return ErrNotInitialized
	}
	c.state = stateActive
	c.log(ctx).Log(ctx, modrun.LevelV3, "container started", "properties", len(c.props))
	return nil
}

// Install installs the archive at uri. Installing a location twice returns the first handle.
func (c *Container) Install(ctx context.Context, uri string) (modrun.Module, error) {
	path, err := modrun.PathFromURI(uri)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return nil, err
	}
	if m, ok := c.byLocation[uri]; ok {
		return m, nil
	}

	mf, err := ReadManifest(path)
	if err != nil {
		return nil, err
	}
	if err := c.checkDuplicateLocked(nil, uri, mf); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("assign module id: %w", err)
	}
	m := &Module{
		c:        c,
		id:       id.String(),
		location: uri,
		path:     path,
		manifest: mf,
		state:    StateInstalled,
	}
	c.modules = append(c.modules, m)
	c.byLocation[uri] = m
	c.log(ctx).Log(ctx, modrun.LevelV3, "module installed", "module", m.String(), "location", uri)
	return m, nil
}

// Relink stops the given modules and everything wired to them, resolves again and restarts
// the ones that were active. Errors from restarting are joined.
func (c *Container) Relink(ctx context.Context, mods []modrun.Module) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}

	targets := make([]*Module, 0, len(mods))
	for _, mod := range mods {
		m, ok := mod.(*Module)
		if !ok || m.c != c {
			return fmt.Errorf("relink: module %s does not belong to this container", mod.ID())
		}
		if m.State() != StateUninstalled {
			targets = append(targets, m)
		}
	}

	closure := c.dependentsLocked(targets)
	var errs []error
	var wasActive []*Module
	order := c.linkedOrderLocked()
	for i := len(order) - 1; i >= 0; i-- {
		m := order[i]
		if _, ok := closure[m]; !ok || m.State() != StateActive {
			continue
		}
		wasActive = append(wasActive, m)
		if err := c.stopModuleLocked(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	for m := range closure {
		if m.State() != StateUninstalled {
			m.setState(StateInstalled)
		}
	}

	w := c.resolveLocked()
	c.linked = w

	restart := make(map[*Module]struct{}, len(wasActive))
	for _, m := range wasActive {
		restart[m] = struct{}{}
	}
	for _, m := range w.order {
		if _, ok := restart[m]; !ok {
			continue
		}
		if err := c.startLocked(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("restart %s: %w", m.Name(), err))
		}
	}

	c.log(ctx).Log(ctx, modrun.LevelV3, "modules relinked", "requested", len(targets), "affected", len(closure))
	c.writeGraphLocked(ctx)
	return errors.Join(errs...)
}

// WaitForStop blocks until Stop has completed or timeout elapses. A zero timeout waits until stopped.
func (c *Container) WaitForStop(ctx context.Context, timeout time.Duration) (modrun.StopEvent, error) {
	if timeout <= 0 {
		select {
		case <-c.stopped:
			return modrun.StopEventStopped, nil
		case <-ctx.Done():
			return modrun.StopEventTimedOut, ctx.Err()
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.stopped:
		return modrun.StopEventStopped, nil
	case <-timer.C:
		return modrun.StopEventTimedOut, nil
	case <-ctx.Done():
		return modrun.StopEventTimedOut, ctx.Err()
	}
}

// Stop stops all active modules in reverse start order and releases waiters.
// Concurrent callers share one shutdown. Once stopped, Stop returns the first result
// without taking the container lock.
func (c *Container) Stop(ctx context.Context) error {
	select {
	case <-c.stopped:
		return c.stopErr
	default:
	}
	_, err, _ := c.sf.Do("stop", func() (any, error) {
		return nil, c.stop(ctx)
	})
	return err
}

func (c *Container) stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateStopped {
		return c.stopErr
	}

	var errs []error
	order := c.linkedOrderLocked()
	for i := len(order) - 1; i >= 0; i-- {
		m := order[i]
		if m.State() != StateActive {
			continue
		}
		if err := c.stopModuleLocked(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}

	c.state = stateStopped
	c.stopErr = errors.Join(errs...)
	close(c.stopped)
	c.log(ctx).Log(ctx, modrun.LevelV3, "container stopped", "error", c.stopErr)
	return c.stopErr
}

// Modules returns the live modules in install order.
func (c *Container) Modules() []*Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked()
}

// Graph returns the wiring of the live modules.
func (c *Container) Graph() Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	live := c.liveLocked()
	return newGraph(live, computeWiring(live))
}

func (c *Container) usableLocked() error {
	switch c.state {
	case stateCreated:
		return ErrNotInitialized
	case stateStopped:
		return ErrContainerStopped
	}
	return nil
}

func (c *Container) liveLocked() []*Module {
	live := make([]*Module, 0, len(c.modules))
	for _, m := range c.modules {
		if m.State() != StateUninstalled {
			live = append(live, m)
		}
	}
	return live
}

func (c *Container) checkDuplicateLocked(self *Module, uri string, mf Manifest) error {
	if mf.Name == "" {
		return nil
	}
	for _, other := range c.liveLocked() {
		if other == self || other.Location() == uri {
			continue
		}
		omf := other.Manifest()
		if omf.Name == mf.Name && omf.Version == mf.Version {
			return DuplicateModuleError{Name: mf.Name, Version: mf.Version, Existing: other.Location()}
		}
	}
	return nil
}

// dependentsLocked returns targets plus every live module wired to one of them, transitively.
// A module counts as wired when the last relink bound it to a target, or when its current
// manifest requires or attaches to a target's current name.
func (c *Container) dependentsLocked(targets []*Module) map[*Module]struct{} {
	closure := make(map[*Module]struct{}, len(targets))
	names := make(map[string]struct{}, len(targets))
	add := func(m *Module) {
		closure[m] = struct{}{}
		if n := m.Name(); n != "" {
			names[n] = struct{}{}
		}
	}
	for _, m := range targets {
		add(m)
	}

	live := c.liveLocked()
	for changed := true; changed; {
		changed = false
		for _, m := range live {
			if _, ok := closure[m]; ok {
				continue
			}
			if !c.linkedToLocked(m, closure) && !requiresAny(m.Manifest(), names) {
				continue
			}
			add(m)
			changed = true
		}
	}
	return closure
}

// linkedOrderLocked returns the live modules in the start order of the last relink,
// followed by modules that relink has not seen yet in their current order.
func (c *Container) linkedOrderLocked() []*Module {
	live := c.liveLocked()
	isLive := make(map[*Module]struct{}, len(live))
	for _, m := range live {
		isLive[m] = struct{}{}
	}

	order := make([]*Module, 0, len(live))
	seen := make(map[*Module]struct{}, len(live))
	for _, m := range c.linked.order {
		if _, ok := isLive[m]; ok {
			order = append(order, m)
			seen[m] = struct{}{}
		}
	}
	for _, m := range computeWiring(live).order {
		if _, ok := seen[m]; !ok {
			order = append(order, m)
		}
	}
	return order
}

func (c *Container) linkedToLocked(m *Module, set map[*Module]struct{}) bool {
	for _, dep := range c.linked.deps[m] {
		if _, ok := set[dep]; ok {
			return true
		}
	}
	return false
}

func requiresAny(mf Manifest, names map[string]struct{}) bool {
	if _, ok := names[mf.AttachmentHost]; ok && mf.AttachmentHost != "" {
		return true
	}
	for _, req := range mf.Requires {
		if _, ok := names[req]; ok {
			return true
		}
	}
	return false
}

// resolveLocked wires the live modules and moves every resolvable installed module to resolved.
func (c *Container) resolveLocked() wiring {
	live := c.liveLocked()
	w := computeWiring(live)
	for _, m := range live {
		problem := w.problems[m]
		m.setProblem(problem)
		if problem == nil && m.State() == StateInstalled {
			m.setState(StateResolved)
		}
	}
	c.wiring = w
	return w
}

func (c *Container) startLocked(ctx context.Context, m *Module) error {
	if m.State() == StateUninstalled {
		return ErrUninstalled
	}
	if c.state == stateStopped {
		return ErrContainerStopped
	}
	if m.IsAttachment() {
		return ErrAttachmentStart
	}
	switch m.State() {
	case StateActive:
		return nil
	case StateInstalled:
		c.resolveLocked()
		if m.State() == StateInstalled {
			if problem := m.Problem(); problem != nil {
				return problem
			}
			return UnresolvedError{Module: m.Name()}
		}
	}

	mf := m.Manifest()
	if mf.Activator != "" {
		a, ok := c.activators.get(mf.Activator)
		if !ok {
			return UnknownActivatorError{Module: mf.Name, Activator: mf.Activator}
		}
		if err := a.Start(ctx, m); err != nil {
			return fmt.Errorf("activator %s: %w", mf.Activator, err)
		}
	}
	m.setState(StateActive)
	c.log(ctx).Log(ctx, modrun.LevelV3, "module active", "module", m.String())
	return nil
}

// stopModuleLocked runs the stop hook of an active module. The module ends up resolved
// even when the hook fails.
func (c *Container) stopModuleLocked(ctx context.Context, m *Module) error {
	if m.State() != StateActive {
		return nil
	}
	m.setState(StateResolved)

	mf := m.Manifest()
	if mf.Activator == "" {
		return nil
	}
	a, ok := c.activators.get(mf.Activator)
	if !ok || a.Stop == nil {
		return nil
	}
	if err := a.Stop(ctx, m); err != nil {
		return fmt.Errorf("stop module %s: %w", mf.Name, err)
	}
	return nil
}

func (c *Container) updateLocked(ctx context.Context, m *Module, uri string) error {
	if m.State() == StateUninstalled {
		return ErrUninstalled
	}
	if err := c.usableLocked(); err != nil {
		return err
	}
	path, err := modrun.PathFromURI(uri)
	if err != nil {
		return err
	}
	mf, err := ReadManifest(path)
	if err != nil {
		return err
	}
	if err := c.checkDuplicateLocked(m, uri, mf); err != nil {
		return err
	}

	wasActive := m.State() == StateActive
	var errs []error
	if wasActive {
		if err := c.stopModuleLocked(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}

	oldLocation := m.Location()
	m.mu.Lock()
	m.location = uri
	m.path = path
	m.manifest = mf
	m.state = StateInstalled
	m.mu.Unlock()
	if oldLocation != uri {
		delete(c.byLocation, oldLocation)
		c.byLocation[uri] = m
	}
	c.log(ctx).Log(ctx, modrun.LevelV3, "module updated", "module", m.String())

	if wasActive {
		if err := c.startLocked(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("restart %s: %w", mf.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Container) uninstallLocked(ctx context.Context, m *Module) error {
	if m.State() == StateUninstalled {
		return ErrUninstalled
	}
	if c.state == stateStopped {
		return ErrContainerStopped
	}
	err := c.stopModuleLocked(ctx, m)
	m.setState(StateUninstalled)
	delete(c.byLocation, m.Location())
	for i, other := range c.modules {
		if other == m {
			c.modules = append(c.modules[:i], c.modules[i+1:]...)
			break
		}
	}
	c.log(ctx).Log(ctx, modrun.LevelV3, "module uninstalled", "module", m.String())
	return err
}

func (c *Container) writeGraphLocked(ctx context.Context) {
	path := c.props[PropGraphFile]
	if path == "" {
		return
	}
	live := c.liveLocked()
	dot := newGraph(live, c.wiring).DOT()
	if err := os.WriteFile(path, []byte(dot), 0o644); err != nil {
		c.log(ctx).Log(ctx, modrun.LevelV1, "write wiring graph failed", "path", path, "error", err)
	}
}
