package modrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ScanResult describes one watcher pass.
type ScanResult struct {
	Updated  []Record
	Failed   []Outcome
	Relinked bool
	// RelinkErr is set when the relink of the updated set failed.
	RelinkErr error
}

// Watcher polls the files behind installed modules and reloads the ones that changed.
//
// Only modification times are compared against the baseline. A file rewritten with the
// same timestamp is not reloaded. A module whose update failed is retried on every pass
// until an update succeeds, even after the baseline has moved past its file.
type Watcher struct {
	container Container
	records   []Record
	interval  time.Duration
	baseline  time.Time
	// pending holds indexes of records whose last update failed.
	pending map[int]struct{}

	now    func() time.Time
	stat   func(path string) (time.Time, error)
	logger *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// WithStat replaces the file modification time lookup.
func WithStat(stat func(path string) (time.Time, error)) WatcherOption {
	return func(w *Watcher) {
		if stat != nil {
			w.stat = stat
		}
	}
}

// NewWatcher creates a watcher over records. The baseline starts at the current clock time.
// An interval of zero disables polling: Run only returns once the container stops.
func NewWatcher(c Container, records []Record, interval time.Duration, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		container: c,
		records:   append([]Record(nil), records...),
		interval:  interval,
		pending:   make(map[int]struct{}),
		now:       time.Now,
		stat:      statModTime,
		logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.baseline = w.now()
	return w
}

// Baseline returns the time after which a file modification counts as a change.
func (w *Watcher) Baseline() time.Time {
	return w.baseline
}

// Run blocks until the container stops. Each wait that times out triggers one Scan.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		ev, err := w.container.WaitForStop(ctx, w.interval)
		if err != nil {
			return fmt.Errorf("wait for container stop: %w", err)
		}
		if ev != StopEventTimedOut {
			return nil
		}
		w.Scan(ctx)
	}
}

// Scan updates every module whose file changed since the baseline and relinks them together.
// The baseline only moves when something was updated.
func (w *Watcher) Scan(ctx context.Context) ScanResult {
	var result ScanResult
	passStart := w.now()

	for i := range w.records {
		r := &w.records[i]
		modTime, err := w.stat(r.File.Path)
		if err != nil {
			w.logger.Log(ctx, LevelV2, "module file unreadable", "file", r.File.Path, "error", err)
			result.Failed = append(result.Failed, Outcome{File: r.File, Module: r.Module, Err: err})
			continue
		}
		_, retry := w.pending[i]
		if !retry && !modTime.After(w.baseline) {
			continue
		}

		if err := r.Module.Update(ctx, r.File.URI()); err != nil {
			err = UpdateError{Module: r.Module.Name(), Path: r.File.Path, Err: err}
			w.logger.Log(ctx, LevelV1, "module update failed", "module", r.Module.Name(), "error", err)
			result.Failed = append(result.Failed, Outcome{File: r.File, Module: r.Module, Err: err})
			w.pending[i] = struct{}{}
			continue
		}
		delete(w.pending, i)
		r.File.ModTime = modTime
		w.logger.Log(ctx, LevelV1, "module updated", "module", r.Module.Name(), "id", r.Module.ID())
		result.Updated = append(result.Updated, *r)
	}

	if len(result.Updated) == 0 {
		return result
	}

	result.Relinked = true
	if err := w.container.Relink(ctx, modulesOf(result.Updated)); err != nil {
		result.RelinkErr = fmt.Errorf("relink %d updated modules: %w", len(result.Updated), err)
		w.logger.Log(ctx, LevelV1, "relink after update failed", "error", result.RelinkErr)
	}
	w.baseline = passStart
	return result
}

func statModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
