package modrun

import (
	"context"
	"fmt"
	"log/slog"
)

// Record ties an installed module to the file it came from.
type Record struct {
	File   CandidateFile
	Module Module
}

// Outcome is the result of one per-file or per-module operation.
type Outcome struct {
	File   CandidateFile
	Module Module
	// Rejected is set when the container did not recognize the file as a module.
	Rejected bool
	Err      error
}

// BootstrapResult collects what one bootstrap pass did.
type BootstrapResult struct {
	Records  []Record
	Installs []Outcome
	Starts   []Outcome
}

// Started returns how many modules started without error.
func (r BootstrapResult) Started() int {
	n := 0
	for _, o := range r.Starts {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Supervisor installs, relinks and starts modules in one container.
// Failures for a single file or module are reported as Outcomes and never abort the batch.
type Supervisor struct {
	container Container
	logger    *slog.Logger
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithLogger sets the logger used for verbosity-gated diagnostics.
func WithLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSupervisor(c Container, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		container: c,
		logger:    discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Container returns the supervised container.
func (s *Supervisor) Container() Container {
	return s.container
}

// Install installs each file. Files the container does not recognize are uninstalled again
// and reported as rejected.
func (s *Supervisor) Install(ctx context.Context, files []CandidateFile) ([]Record, []Outcome) {
	records := make([]Record, 0, len(files))
	outcomes := make([]Outcome, 0, len(files))
	for _, f := range files {
		o := s.install(ctx, f)
		outcomes = append(outcomes, o)
		if o.Err == nil && !o.Rejected {
			records = append(records, Record{File: f, Module: o.Module})
		}
	}
	return records, outcomes
}

func (s *Supervisor) install(ctx context.Context, f CandidateFile) Outcome {
	m, err := s.container.Install(ctx, f.URI())
	if err != nil {
		err = InstallError{Path: f.Path, Err: err}
		s.logger.Log(ctx, LevelV1, "file could not be installed", "file", f.Path, "error", err)
		return Outcome{File: f, Err: err}
	}
	if m == nil {
		err = InstallError{Path: f.Path, Err: fmt.Errorf("container returned no module")}
		s.logger.Log(ctx, LevelV1, "file could not be installed", "file", f.Path, "error", err)
		return Outcome{File: f, Err: err}
	}

	if m.Name() == "" {
		s.logger.Log(ctx, LevelV2, "file is not a module, removing", "file", f.Path, "id", m.ID())
		if err := m.Uninstall(ctx); err != nil {
			s.logger.Log(ctx, LevelV1, "uninstall of rejected file failed", "file", f.Path, "id", m.ID(), "error", err)
		}
		return Outcome{File: f, Module: m, Rejected: true}
	}

	s.logger.Log(ctx, LevelV2, "module installed",
		"file", f.Name(),
		"module", m.Name(),
		"id", m.ID(),
	)
	return Outcome{File: f, Module: m}
}

// Relink asks the container to recompute wiring for exactly the modules in records, in one call.
func (s *Supervisor) Relink(ctx context.Context, records []Record) error {
	if err := s.container.Relink(ctx, modulesOf(records)); err != nil {
		return fmt.Errorf("relink %d modules: %w", len(records), err)
	}
	return nil
}

// StartAll starts every module that is not attachment-only.
func (s *Supervisor) StartAll(ctx context.Context, records []Record) []Outcome {
	outcomes := make([]Outcome, 0, len(records))
	for _, r := range records {
		if r.Module.IsAttachment() {
			continue
		}
		s.logger.Log(ctx, LevelV3, "starting module", "module", r.Module.Name(), "id", r.Module.ID())
		if err := r.Module.Start(ctx); err != nil {
			err = StartError{Module: r.Module.Name(), Err: err}
			s.logger.Log(ctx, LevelV1, "module failed to start", "module", r.Module.Name(), "id", r.Module.ID(), "error", err)
			outcomes = append(outcomes, Outcome{File: r.File, Module: r.Module, Err: err})
			continue
		}
		s.logger.Log(ctx, LevelV1, "module started", "module", r.Module.Name(), "id", r.Module.ID())
		outcomes = append(outcomes, Outcome{File: r.File, Module: r.Module})
	}
	return outcomes
}

// Bootstrap installs all files, relinks everything that installed, then starts the runnable modules.
// A relink failure is returned and nothing is started.
func (s *Supervisor) Bootstrap(ctx context.Context, files []CandidateFile) (BootstrapResult, error) {
	records, installs := s.Install(ctx, files)
	result := BootstrapResult{Records: records, Installs: installs}
	if err := s.Relink(ctx, records); err != nil {
		return result, err
	}
	result.Starts = s.StartAll(ctx, records)
	return result, nil
}

// Stop asks the container to shut down.
func (s *Supervisor) Stop(ctx context.Context) error {
	return s.container.Stop(ctx)
}

func modulesOf(records []Record) []Module {
	modules := make([]Module, len(records))
	for i, r := range records {
		modules[i] = r.Module
	}
	return modules
}
