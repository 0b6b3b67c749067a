package local

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrContainerStopped means the container no longer accepts operations.
	ErrContainerStopped = errors.New("container is stopped")
	// ErrNotInitialized means Init has not been called.
	ErrNotInitialized = errors.New("container is not initialized")
	// ErrUninstalled means the module handle was uninstalled.
	ErrUninstalled = errors.New("module is uninstalled")
	// ErrAttachmentStart means an attachment-only module was asked to start.
	ErrAttachmentStart = errors.New("attachment modules cannot be started")
)

// DuplicateModuleError means a module with the same name and version is installed from another location.
type DuplicateModuleError struct {
	Name     string
	Version  string
	Existing string
}

func (e DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %s %s already installed from %s", e.Name, e.Version, e.Existing)
}

// UnresolvedError means a module's requirements could not be wired.
type UnresolvedError struct {
	Module  string
	Missing []string
	Cause   error
}

func (e UnresolvedError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("module %s is unresolved: missing %s", e.Module, strings.Join(e.Missing, ", "))
	case e.Cause != nil:
		return fmt.Sprintf("module %s is unresolved: %v", e.Module, e.Cause)
	default:
		return fmt.Sprintf("module %s is unresolved", e.Module)
	}
}

func (e UnresolvedError) Unwrap() error {
	return e.Cause
}

// CycleDetectedError means modules require each other in a cycle.
type CycleDetectedError struct {
	Path []string
}

func (e CycleDetectedError) Error() string {
	if len(e.Path) == 0 {
		return "module dependency cycle detected"
	}
	return "module dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// UnknownActivatorError means a manifest names an activator that is not registered.
type UnknownActivatorError struct {
	Module    string
	Activator string
}

func (e UnknownActivatorError) Error() string {
	return fmt.Sprintf("module %s: activator %q not registered", e.Module, e.Activator)
}

// DuplicateActivatorError means an activator name was registered twice.
type DuplicateActivatorError struct {
	Name string
}

func (e DuplicateActivatorError) Error() string {
	return fmt.Sprintf("duplicate activator: %q", e.Name)
}
