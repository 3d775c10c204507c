//go:build linux

package hy3dtools

import (
	"os"
	"path/filepath"
)

// defaultCacheDir returns the default download cache location for Linux.
// Uses $XDG_CACHE_HOME/huggingface/hub if set,
// otherwise ~/.cache/huggingface/hub
func defaultCacheDir() (string, error) {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "huggingface", "hub"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "huggingface", "hub"), nil
}
