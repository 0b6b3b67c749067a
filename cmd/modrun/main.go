// Command modrun finds module files on disk, installs them into the first registered
// container and keeps them running until the process is told to stop.
//
//	modrun -r ./modules -p local.graph=wiring.dot -v -w 5
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chenyanchen/modrun"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, modrun.DefaultRegistry, os.Exit))
}

// run is main without the process globals. exit is called when a termination stop fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, registry *modrun.Registry, exit func(int)) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintln(stderr, "modrun:", err)
		printUsage(stderr)
		return exitCode(err)
	}
	if opts.help {
		printUsage(stdout)
		return 0
	}

	logger := modrun.NewLogger(stderr, opts.verbosity)
	ctx = modrun.ContextWithLogger(ctx, logger)

	if err := serve(ctx, opts, logger, registry, exit); err != nil {
		logger.Error("modrun failed", "error", err)
		return exitCode(err)
	}
	return 0
}

func serve(ctx context.Context, opts options, logger *slog.Logger, registry *modrun.Registry, exit func(int)) error {
	name, provider, err := modrun.ResolveProvider(registry)
	if errors.Is(err, modrun.ErrNoProvider) {
		logger.Log(ctx, modrun.LevelV1, "no container provider registered, nothing to run")
		return nil
	}
	if err != nil {
		return err
	}

	for _, arg := range opts.ignored {
		logger.Log(ctx, modrun.LevelV1, "ignoring argument", "arg", arg)
	}

	files, err := modrun.LocateAll(ctx, opts.roots)
	if err != nil {
		var patternErr modrun.PatternError
		if errors.As(err, &patternErr) {
			return exitError{code: 2, err: err}
		}
		return err
	}
	files = modrun.Dedupe(files)
	logger.Log(ctx, modrun.LevelV2, "module files located", "count", len(files))

	c, err := modrun.Open(ctx, provider, opts.props)
	if err != nil {
		return fmt.Errorf("open %s container: %w", name, err)
	}
	logger.Log(ctx, modrun.LevelV3, "container started", "provider", name)

	sup := modrun.NewSupervisor(c, modrun.WithLogger(logger))
	result, err := sup.Bootstrap(ctx, files)
	if err != nil {
		if stopErr := c.Stop(ctx); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		return err
	}
	logger.Log(ctx, modrun.LevelV2, "bootstrap finished",
		"installed", len(result.Records),
		"started", result.Started(),
	)

	term := modrun.NewTerminator(c.Stop,
		modrun.WithExit(exit),
		modrun.WithTerminatorLogger(logger),
	)
	cancel := term.Notify(ctx)
	defer cancel()

	w := modrun.NewWatcher(c, result.Records, opts.interval, modrun.WithWatchLogger(logger))
	if err := w.Run(ctx); err != nil {
		logger.Log(ctx, modrun.LevelV1, "watcher stopped", "error", err)
		if termErr := term.Terminate(); termErr != nil {
			return termErr
		}
	}
	return term.Err()
}

func exitCode(err error) int {
	var e exitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}
