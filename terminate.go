package modrun

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Terminator stops the container once when the process is asked to terminate.
// A stop failure is fatal: it is logged and the process exits with status 1.
type Terminator struct {
	stop        func(ctx context.Context) error
	exit        func(code int)
	logger      *slog.Logger
	stopTimeout time.Duration

	once sync.Once
	mu   sync.Mutex
	err  error
}

// TerminatorOption configures a Terminator.
type TerminatorOption func(*Terminator)

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) TerminatorOption {
	return func(t *Terminator) {
		if exit != nil {
			t.exit = exit
		}
	}
}

// WithTerminatorLogger sets the logger for stop failures.
func WithTerminatorLogger(logger *slog.Logger) TerminatorOption {
	return func(t *Terminator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithStopTimeout bounds how long the stop call may take. Zero means no bound.
func WithStopTimeout(d time.Duration) TerminatorOption {
	return func(t *Terminator) {
		t.stopTimeout = d
	}
}

func NewTerminator(stop func(ctx context.Context) error, opts ...TerminatorOption) *Terminator {
	t := &Terminator{
		stop:   stop,
		exit:   os.Exit,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Terminate stops the container. Only the first call does anything.
func (t *Terminator) Terminate() error {
	t.once.Do(func() {
		ctx := ContextWithLogger(context.Background(), t.logger)
		if t.stopTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.stopTimeout)
			defer cancel()
		}
		if err := t.stop(ctx); err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			t.logger.Error("container failed to stop", "error", err)
			t.exit(1)
		}
	})
	return t.Err()
}

// Err returns the stop error recorded by Terminate, if any.
func (t *Terminator) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Notify calls Terminate on the first of sigs (SIGINT and SIGTERM when none are given).
// The returned function unsubscribes; it does not terminate.
func (t *Terminator) Notify(ctx context.Context, sigs ...os.Signal) (cancel func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ch:
			_ = t.Terminate()
		case <-ctx.Done():
		case <-done:
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(done)
			wg.Wait()
		})
	}
}
