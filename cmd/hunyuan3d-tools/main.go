// Command hunyuan3d-tools stages Hunyuan3D-2 model weights from the download
// cache into the local models directory and builds the native renderer
// components.
//
// Configuration is taken from environment variables:
//   - HY3D_CACHE_DIR: override for the download cache location (optional)
//   - HY3D_MODELS_DIR: override for the local models directory (optional)
//   - HY3D_PROJECT_DIR: project root containing the renderer sources (optional)
package main

import (
	"errors"
	"log/slog"
	"os"

	hy3dtools "github.com/Limbicnation/hunyuan3d-tools"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the operation completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred. Also used
	// for the fatal precondition failures: missing cache entry and wrong
	// conda environment.
	ExitGeneralError = 1

	// ExitInvalidArgs indicates invalid command line arguments or an
	// invalid build plan.
	ExitInvalidArgs = 2

	// ExitNotCopied indicates the model has not been staged locally.
	ExitNotCopied = 3

	// ExitStorageError indicates a filesystem operation failed.
	ExitStorageError = 4
)

func main() {
	var opts []hy3dtools.ManagerOption
	if hasVerboseFlag(os.Args[1:]) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		opts = append(opts, hy3dtools.WithLogger(logger))
	}

	cmd := hy3dtools.NewCommand(hy3dtools.Config{}, opts...)
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFromError(err))
	}
}

// hasVerboseFlag reports whether --verbose/-v appears in the arguments.
// The flag itself is parsed by the command tree; it is peeked here only to
// decide whether to install a debug logger before the tree runs.
func hasVerboseFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--verbose" || arg == "-v" {
			return true
		}
	}
	return false
}

// exitCodeFromError maps error types to exit codes.
// A failed build step propagates the build command's own exit status.
func exitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var buildErr *hy3dtools.BuildError
	if errors.As(err, &buildErr) {
		return buildErr.ExitCode
	}

	switch {
	case errors.Is(err, hy3dtools.ErrCacheNotFound):
		return ExitGeneralError
	case errors.Is(err, hy3dtools.ErrWrongEnv):
		return ExitGeneralError
	case errors.Is(err, hy3dtools.ErrInvalidRef):
		return ExitInvalidArgs
	case errors.Is(err, hy3dtools.ErrInvalidPlan):
		return ExitInvalidArgs
	case errors.Is(err, hy3dtools.ErrNotCopied):
		return ExitNotCopied
	case errors.Is(err, hy3dtools.ErrStorageError):
		return ExitStorageError
	default:
		return ExitGeneralError
	}
}
