//go:build windows

package hy3dtools

import (
	"os"
	"path/filepath"
)

// defaultCacheDir returns the default download cache location for Windows:
// %USERPROFILE%\.cache\huggingface\hub
func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "huggingface", "hub"), nil
}
