package hy3dtools

import (
	"os"
	"os/exec"
	"path/filepath"
)

// EnvCondaEnv is the variable conda sets to the active environment name.
const EnvCondaEnv = "CONDA_DEFAULT_ENV"

// lookPathFunc locates an executable on the search path.
// exec.LookPath satisfies this signature.
type lookPathFunc func(file string) (string, error)

// defaultLookPath is the production executable lookup.
var defaultLookPath lookPathFunc = exec.LookPath

// activeCondaEnv returns the name of the active conda environment, empty if
// none is active.
func activeCondaEnv() string {
	return os.Getenv(EnvCondaEnv)
}

// findCUDACompiler locates the nvcc compiler. Checks the search path first,
// then $CUDA_HOME/bin/nvcc. Returns the compiler path and whether it was
// found.
func findCUDACompiler(lookPath lookPathFunc) (string, bool) {
	if path, err := lookPath("nvcc"); err == nil {
		return path, true
	}

	if cudaHome := os.Getenv("CUDA_HOME"); cudaHome != "" {
		path := filepath.Join(cudaHome, "bin", "nvcc")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}

	return "", false
}
