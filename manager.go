package hy3dtools

import (
	"context"
	"os"
	"sync"
)

// EnvProjectDir is the environment variable overriding the project root.
const EnvProjectDir = "HY3D_PROJECT_DIR"

// Manager provides programmatic access to model staging and renderer builds.
// All methods are safe for concurrent use.
// For CLI integration, use NewCommand instead.
type Manager interface {
	// Copy stages a model's weight files from the download cache into the
	// local models directory. Returns ErrCacheNotFound if the cache has no
	// entry for the model, and ErrAlreadyCopied if it is already staged and
	// WithForce() is not specified. Individual file copy failures are
	// best-effort: they are counted in the result but never fail the run.
	Copy(ctx context.Context, ref ModelRef, opts ...CopyOption) (CopyResult, error)

	// CopyAll stages every known model, continuing past per-model failures.
	// Returns the results of the models that were processed and the joined
	// errors of those that failed.
	CopyAll(ctx context.Context, opts ...CopyOption) ([]CopyResult, error)

	// ListCopied returns all models staged in the local models directory.
	ListCopied(ctx context.Context) ([]CopiedModel, error)

	// GetCopied returns info about a specific staged model.
	// Returns ErrNotCopied if the model has not been staged.
	GetCopied(ctx context.Context, ref ModelRef) (CopiedModel, error)

	// Path returns the absolute path to a staged model's directory.
	// Returns ErrNotCopied if the model has not been staged.
	Path(ctx context.Context, ref ModelRef) (string, error)

	// Remove deletes a staged model's directory and registry entry.
	// Returns ErrNotCopied if the model has not been staged.
	Remove(ctx context.Context, ref ModelRef) error

	// Build compiles and installs the renderer components sequentially,
	// fail-fast. Returns ErrWrongEnv if the expected conda environment is
	// not active; a failed install command is reported as a *BuildError
	// carrying its exit status. Components requiring the CUDA compiler are
	// skipped, not failed, when nvcc is absent.
	Build(ctx context.Context, opts ...BuildOption) (BuildReport, error)

	// Status reports the execution environment: active conda env, CUDA
	// compiler, cache and models directories, and per-model staging state.
	// WithPlan sets the conda environment the report is checked against.
	Status(ctx context.Context, opts ...BuildOption) (EnvStatus, error)
}

// manager is the concrete implementation of the Manager interface.
type manager struct {
	// cfg holds the module configuration.
	cfg Config

	// storage handles local filesystem operations.
	storage storageInterface

	// runner executes build commands.
	runner commandRunner

	// lookPath locates executables for CUDA detection.
	lookPath lookPathFunc

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// copyMu serializes copy operations.
	copyMu sync.Mutex
}

// Ensure manager implements Manager interface.
var _ Manager = (*manager)(nil)

// NewManager creates a new Manager with the given configuration.
// Returns an error if the models directory cannot be created.
func NewManager(cfg Config, opts ...ManagerOption) (Manager, error) {
	mcfg := newManagerConfig()
	for _, opt := range opts {
		opt(mcfg)
	}

	storage, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	return &manager{
		cfg:      cfg,
		storage:  storage,
		runner:   mcfg.runner,
		lookPath: mcfg.lookPath,
		logger:   mcfg.logger,
	}, nil
}

// projectDir resolves the project root containing the renderer sources.
// Priority: env var > Config.ProjectDir > current directory.
func (m *manager) projectDir() string {
	if envDir := os.Getenv(EnvProjectDir); envDir != "" {
		return envDir
	}
	if m.cfg.ProjectDir != "" {
		return m.cfg.ProjectDir
	}
	return "."
}

// debug logs through the optional logger.
func (m *manager) debug(msg string, keysAndValues ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, keysAndValues...)
	}
}

// warn logs through the optional logger.
func (m *manager) warn(msg string, keysAndValues ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, keysAndValues...)
	}
}
