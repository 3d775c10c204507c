package hy3dtools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// commandRunner executes a component's install command.
// Implemented by execRunner for production and mockRunner for tests.
// This interface enables build tests without invoking real tooling.
type commandRunner interface {
	// Run executes name with args in dir, streaming combined output to out.
	// Returns the command's error verbatim; callers extract the exit status.
	Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) error
}

// execRunner runs commands with os/exec.
type execRunner struct{}

var _ commandRunner = execRunner{}

func (execRunner) Run(ctx context.Context, dir string, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// BuildError reports a failed build step. The step's exit status is carried
// so CLI callers can propagate it verbatim.
type BuildError struct {
	// Step is the name of the component that failed.
	Step string

	// ExitCode is the failing command's exit status.
	ExitCode int

	// Err is the underlying command error.
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("hy3dtools: building %s: %v", e.Step, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// commandExitCode extracts a process exit status from err, defaulting to 1
// when the command never ran or was killed by a signal.
func commandExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}

// Build compiles and installs the renderer components per the build plan.
//
// The run is gated on the plan's conda environment being active and is
// fail-fast: the first failing component aborts the run and later components
// are never attempted. Components requiring CUDA are skipped with a notice
// when no nvcc is found. There is no rollback; components installed before a
// failure stay installed.
func (m *manager) Build(ctx context.Context, opts ...BuildOption) (BuildReport, error) {
	bcfg := newBuildConfig()
	for _, opt := range opts {
		opt(bcfg)
	}
	plan := bcfg.plan

	report := BuildReport{
		RunID: uuid.NewString(),
		Env:   plan.Environment,
	}

	if active := activeCondaEnv(); active != plan.Environment {
		return report, fmt.Errorf("%w: %q is active, activate %q first",
			ErrWrongEnv, active, plan.Environment)
	}

	compiler, hasCUDA := findCUDACompiler(m.lookPath)
	report.CompilerPath = compiler
	if hasCUDA {
		m.debug("found CUDA compiler", "path", compiler)
	}

	start := time.Now()
	for _, comp := range plan.Components {
		if comp.RequiresCUDA && !hasCUDA {
			m.warn("skipping component, no CUDA compiler found", "component", comp.Name)
			report.Steps = append(report.Steps, StepResult{
				Name:   comp.Name,
				Dir:    comp.Dir,
				Status: StepSkipped,
			})
			continue
		}

		dir := filepath.Join(m.projectDir(), comp.Dir)
		if _, err := os.Stat(dir); err != nil {
			report.Duration = time.Since(start)
			report.Steps = append(report.Steps, StepResult{
				Name:     comp.Name,
				Dir:      comp.Dir,
				Status:   StepFailed,
				ExitCode: 1,
			})
			return report, &BuildError{
				Step:     comp.Name,
				ExitCode: 1,
				Err:      fmt.Errorf("component directory %s: %w", dir, err),
			}
		}

		cmdline := comp.command()
		m.debug("building component", "component", comp.Name, "dir", dir, "command", cmdline)

		stepStart := time.Now()
		err := m.runner.Run(ctx, dir, bcfg.output, cmdline[0], cmdline[1:]...)
		stepDuration := time.Since(stepStart)

		if err != nil {
			code := commandExitCode(err)
			report.Steps = append(report.Steps, StepResult{
				Name:     comp.Name,
				Dir:      comp.Dir,
				Status:   StepFailed,
				ExitCode: code,
				Duration: stepDuration,
			})
			report.Duration = time.Since(start)
			return report, &BuildError{Step: comp.Name, ExitCode: code, Err: err}
		}

		report.Steps = append(report.Steps, StepResult{
			Name:     comp.Name,
			Dir:      comp.Dir,
			Status:   StepOK,
			Duration: stepDuration,
		})
	}

	report.Duration = time.Since(start)
	return report, nil
}

// Status reports the execution environment for doctor-style diagnostics.
// The environment check follows the build plan, so a custom plan's
// environment is reported the same way Build would gate on it.
func (m *manager) Status(ctx context.Context, opts ...BuildOption) (EnvStatus, error) {
	bcfg := newBuildConfig()
	for _, opt := range opts {
		opt(bcfg)
	}

	st := EnvStatus{
		CondaEnv:    activeCondaEnv(),
		ExpectedEnv: bcfg.plan.Environment,
		ModelsDir:   m.storage.baseDirPath(),
	}
	st.EnvOK = st.CondaEnv == st.ExpectedEnv

	if compiler, ok := findCUDACompiler(m.lookPath); ok {
		st.CompilerPath = compiler
	}

	cacheDir, err := resolveCacheDir(m.cfg)
	if err != nil {
		return st, fmt.Errorf("resolving cache dir: %w", err)
	}
	st.CacheDir = cacheDir
	if info, err := os.Stat(cacheDir); err == nil && info.IsDir() {
		st.CacheDirExists = true
	}

	reg, err := m.storage.loadRegistry()
	if err != nil {
		return st, fmt.Errorf("loading registry: %w", err)
	}

	for _, ref := range DefaultModels {
		ms := ModelStatus{Ref: ref}
		entryDir := filepath.Join(cacheDir, cacheEntryName(ref))
		if info, err := os.Stat(entryDir); err == nil && info.IsDir() {
			ms.Cached = true
		}
		_, ms.Copied = lookupEntry(reg, ref)
		st.Models = append(st.Models, ms)
	}

	return st, nil
}
