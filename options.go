package hy3dtools

import "io"

// CopyOption configures a copy operation.
type CopyOption func(*copyConfig)

// copyConfig holds configuration for a copy operation.
type copyConfig struct {
	// force causes re-copy even if the model is already staged.
	force bool

	// progressFn is called with progress updates during the copy.
	progressFn func(CopyProgress)
}

// newCopyConfig returns a copyConfig with default values.
func newCopyConfig() *copyConfig {
	return &copyConfig{}
}

// WithForce forces re-copy even if the model is already staged.
func WithForce() CopyOption {
	return func(c *copyConfig) {
		c.force = true
	}
}

// WithProgress sets a callback for progress updates during the copy.
func WithProgress(fn func(CopyProgress)) CopyOption {
	return func(c *copyConfig) {
		c.progressFn = fn
	}
}

// BuildOption configures a build run.
type BuildOption func(*buildConfig)

// buildConfig holds configuration for a build run.
type buildConfig struct {
	// plan is the build plan to execute.
	plan BuildPlan

	// output receives the build tooling's combined stdout/stderr.
	output io.Writer
}

// newBuildConfig returns a buildConfig with default values.
func newBuildConfig() *buildConfig {
	return &buildConfig{
		plan:   DefaultPlan(),
		output: io.Discard,
	}
}

// WithPlan sets the build plan to execute instead of the default one.
func WithPlan(plan BuildPlan) BuildOption {
	return func(c *buildConfig) {
		c.plan = plan
	}
}

// WithBuildOutput streams the build tooling's output to w.
// If not set, output is discarded.
func WithBuildOutput(w io.Writer) BuildOption {
	return func(c *buildConfig) {
		c.output = w
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// managerConfig holds configuration for Manager construction.
type managerConfig struct {
	// runner executes build commands.
	runner commandRunner

	// lookPath locates executables on the search path.
	lookPath lookPathFunc

	// logger receives diagnostic log messages.
	logger Logger
}

// newManagerConfig returns a managerConfig with default values.
func newManagerConfig() *managerConfig {
	return &managerConfig{
		runner:   execRunner{},
		lookPath: defaultLookPath,
	}
}

// WithRunner sets a custom command runner for build steps.
// Useful for testing without invoking real build tooling.
func WithRunner(r commandRunner) ManagerOption {
	return func(c *managerConfig) {
		c.runner = r
	}
}

// WithLookPath sets a custom executable lookup function.
// Useful for testing CUDA compiler detection.
func WithLookPath(fn lookPathFunc) ManagerOption {
	return func(c *managerConfig) {
		c.lookPath = fn
	}
}

// WithLogger sets a logger for diagnostic output.
// If not set, logging is disabled.
func WithLogger(logger Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// Logger is the interface for diagnostic logging.
// *slog.Logger satisfies this interface, as do zap and logrus sugared loggers.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}
