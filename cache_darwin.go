//go:build darwin

package hy3dtools

import (
	"os"
	"path/filepath"
)

// defaultCacheDir returns the default download cache location for macOS.
// The hub tooling uses ~/.cache/huggingface/hub on macOS as well.
func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "huggingface", "hub"), nil
}
