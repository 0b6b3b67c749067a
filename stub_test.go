package modrun

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// stubContainer records every call in order. Modules are named after the file base name
// unless names overrides it; an empty override means "not a module".
type stubContainer struct {
	mu      sync.Mutex
	calls   []string
	names   map[string]string
	modules map[string]*stubModule
	// attachments lists files that install as attachment-only modules.
	attachments map[string]bool

	installErr map[string]error
	startErr   map[string]error
	updateErr  map[string]error
	relinkErr  error
	stopErr    error

	relinked [][]string
	waits    []StopEvent
	stopped  chan struct{}
	stopOnce sync.Once
}

func newStubContainer() *stubContainer {
	return &stubContainer{
		names:       make(map[string]string),
		modules:     make(map[string]*stubModule),
		attachments: make(map[string]bool),
		installErr:  make(map[string]error),
		startErr:    make(map[string]error),
		updateErr:   make(map[string]error),
		stopped:     make(chan struct{}),
	}
}

func (c *stubContainer) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *stubContainer) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *stubContainer) Init(context.Context) error {
	c.record("init")
	return nil
}

func (c *stubContainer) Start(context.Context) error {
	c.record("start")
	return nil
}

func (c *stubContainer) Install(_ context.Context, uri string) (Module, error) {
	path, err := PathFromURI(uri)
	if err != nil {
		return nil, err
	}
	file := CandidateFile{Path: path}.Name()
	c.record("install " + file)
	if err := c.installErr[file]; err != nil {
		return nil, err
	}
	name, ok := c.names[file]
	if !ok {
		name = file
	}
	m := &stubModule{c: c, id: fmt.Sprintf("%d", len(c.modules)+1), name: name, location: uri, attachment: c.attachments[file]}
	c.modules[file] = m
	return m, nil
}

func (c *stubContainer) Relink(_ context.Context, modules []Module) error {
	names := make([]string, 0, len(modules))
	for _, m := range modules {
		names = append(names, m.Name())
	}
	c.record(fmt.Sprintf("relink %v", names))
	c.mu.Lock()
	c.relinked = append(c.relinked, names)
	c.mu.Unlock()
	return c.relinkErr
}

// WaitForStop replays waits, then reports stopped.
func (c *stubContainer) WaitForStop(ctx context.Context, _ time.Duration) (StopEvent, error) {
	c.mu.Lock()
	if len(c.waits) > 0 {
		ev := c.waits[0]
		c.waits = c.waits[1:]
		c.mu.Unlock()
		return ev, nil
	}
	c.mu.Unlock()
	select {
	case <-c.stopped:
		return StopEventStopped, nil
	case <-ctx.Done():
		return StopEventTimedOut, ctx.Err()
	}
}

func (c *stubContainer) Stop(context.Context) error {
	c.record("stop")
	c.stopOnce.Do(func() { close(c.stopped) })
	return c.stopErr
}

type stubModule struct {
	c          *stubContainer
	id         string
	name       string
	location   string
	attachment bool
}

func (m *stubModule) ID() string         { return m.id }
func (m *stubModule) Name() string       { return m.name }
func (m *stubModule) Location() string   { return m.location }
func (m *stubModule) IsAttachment() bool { return m.attachment }

func (m *stubModule) Start(context.Context) error {
	m.c.record("start " + m.name)
	return m.c.startErr[m.name]
}

func (m *stubModule) Update(_ context.Context, uri string) error {
	m.c.record("update " + m.name)
	if err := m.c.updateErr[m.name]; err != nil {
		return err
	}
	m.location = uri
	return nil
}

func (m *stubModule) Uninstall(context.Context) error {
	label := m.name
	if label == "" {
		label = m.id
	}
	m.c.record("uninstall " + label)
	return nil
}
