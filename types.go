package modrun

import (
	"context"
	"maps"
	"net/url"
	"path/filepath"
	"time"
)

// CandidateFile is a module file found on disk.
// Path is absolute. ModTime is the modification time observed when the file was found.
type CandidateFile struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"modTime"`
}

// Name returns the base file name used for deduplication.
func (f CandidateFile) Name() string {
	return filepath.Base(f.Path)
}

// URI returns the file reference handed to the container.
func (f CandidateFile) URI() string {
	return FileURI(f.Path)
}

// FileURI builds the "file:" reference for an absolute path.
func FileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// PathFromURI is the inverse of FileURI. Plain paths are returned unchanged.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return uri, nil
	}
	if u.Scheme != "file" {
		return "", UnsupportedURIError{URI: uri}
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return filepath.FromSlash(p), nil
}

// Properties is the configuration handed to a container at construction.
type Properties map[string]string

// Get returns the value of key, or fallback when the key is absent.
func (p Properties) Get(key string, fallback string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return fallback
}

// Clone returns a copy that does not share storage with p.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// StopEvent is what a container reports when a wait returns.
type StopEvent int

const (
	// StopEventTimedOut means the wait elapsed while the container kept running.
	StopEventTimedOut StopEvent = iota
	// StopEventStopped means the container stopped.
	StopEventStopped
)

func (e StopEvent) String() string {
	switch e {
	case StopEventTimedOut:
		return "timed-out"
	case StopEventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Module is the handle a container returns for an installed file.
//
// Name is empty when the container did not recognize the file as a module.
// IsAttachment reports modules that only extend another module and are never started on their own.
type Module interface {
	ID() string
	Name() string
	Location() string
	IsAttachment() bool
	Start(ctx context.Context) error
	Update(ctx context.Context, uri string) error
	Uninstall(ctx context.Context) error
}

// Container is the host runtime that installs, links and runs modules.
//
// Relink recomputes wiring for the given modules in one pass.
// WaitForStop blocks until the container stops or timeout elapses; a zero timeout waits until stopped.
type Container interface {
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Install(ctx context.Context, uri string) (Module, error)
	Relink(ctx context.Context, modules []Module) error
	WaitForStop(ctx context.Context, timeout time.Duration) (StopEvent, error)
	Stop(ctx context.Context) error
}

// Provider constructs containers.
type Provider interface {
	NewContainer(props Properties) (Container, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(props Properties) (Container, error)

// NewContainer implements Provider.
func (f ProviderFunc) NewContainer(props Properties) (Container, error) {
	return f(props)
}
