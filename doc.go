// Package modrun bootstraps and supervises a pluggable-module container.
//
// It offers:
// - module file discovery over one or more roots, with name deduplication
// - a provider registry to pick the host container implementation
// - install, relink and start sequencing with per-module failure isolation
// - polling hot-reload of changed module files, relinked in one batch
// - a one-shot termination handler that stops the container on signal
package modrun
