package modrun

import (
	"errors"
	"fmt"
)

// ErrNoProvider means no container provider is registered.
var ErrNoProvider = errors.New("no container provider registered")

// PatternError means a locator match pattern does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e PatternError) Error() string {
	return fmt.Sprintf("invalid match pattern %q: %v", e.Pattern, e.Err)
}

func (e PatternError) Unwrap() error {
	return e.Err
}

// DuplicateProviderError means a provider name was registered twice.
type DuplicateProviderError struct {
	Name string
}

func (e DuplicateProviderError) Error() string {
	return fmt.Sprintf("duplicate container provider: %q", e.Name)
}

// ProviderNotFoundError means looking up a provider that is not registered.
type ProviderNotFoundError struct {
	Name string
}

func (e ProviderNotFoundError) Error() string {
	return fmt.Sprintf("container provider not found: %q", e.Name)
}

// UnsupportedURIError means a module reference is not a file reference.
type UnsupportedURIError struct {
	URI string
}

func (e UnsupportedURIError) Error() string {
	return fmt.Sprintf("unsupported module uri: %s", e.URI)
}

// InstallError wraps a failure to install one file.
type InstallError struct {
	Path string
	Err  error
}

func (e InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Path, e.Err)
}

func (e InstallError) Unwrap() error {
	return e.Err
}

// StartError wraps a failure to start one module.
type StartError struct {
	Module string
	Err    error
}

func (e StartError) Error() string {
	return fmt.Sprintf("start module %s: %v", e.Module, e.Err)
}

func (e StartError) Unwrap() error {
	return e.Err
}

// UpdateError wraps a failure to update one module from its file.
type UpdateError struct {
	Module string
	Path   string
	Err    error
}

func (e UpdateError) Error() string {
	return fmt.Sprintf("update module %s from %s: %v", e.Module, e.Path, e.Err)
}

func (e UpdateError) Unwrap() error {
	return e.Err
}
