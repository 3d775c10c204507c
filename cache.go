package hy3dtools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EnvCacheDir is the environment variable overriding the cache location.
const EnvCacheDir = "HY3D_CACHE_DIR"

// resolveCacheDir returns the download cache directory.
// Priority: env var > Config.CacheDir > platform default.
func resolveCacheDir(cfg Config) (string, error) {
	if envDir := os.Getenv(EnvCacheDir); envDir != "" {
		return envDir, nil
	}
	if cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	return defaultCacheDir()
}

// cacheEntryName returns the cache directory name for a repository,
// following the hub convention: "models--<owner>--<name>".
func cacheEntryName(ref ModelRef) string {
	return "models--" + strings.ReplaceAll(ref.RepoID(), "/", "--")
}

// cacheEntry locates the cache entry for a model and determines which
// directories hold its file contents.
//
// Cache entries downloaded by the hub tooling keep the actual files in
// versioned snapshots/<revision>/ subdirectories, with refs/main naming the
// current revision. Entries produced by other tools may keep files at the
// entry root. Returns the content directories (one per revision, or the
// entry root) and whether the snapshot layout was used.
func cacheEntry(cacheDir string, ref ModelRef) (dirs []string, fromSnapshot bool, err error) {
	entryDir := filepath.Join(cacheDir, cacheEntryName(ref))
	info, statErr := os.Stat(entryDir)
	if statErr != nil || !info.IsDir() {
		return nil, false, fmt.Errorf("%w: %s (run the model downloader first)", ErrCacheNotFound, ref.RepoID())
	}

	snapDir := filepath.Join(entryDir, "snapshots")
	if info, statErr := os.Stat(snapDir); statErr == nil && info.IsDir() {
		revs, err := snapshotRevisions(entryDir)
		if err != nil {
			return nil, false, err
		}
		return revs, true, nil
	}

	return []string{entryDir}, false, nil
}

// snapshotRevisions returns the snapshot revision directories to copy from.
// If refs/main names an existing revision, only that revision is used;
// otherwise all revision directories are returned in sorted order.
func snapshotRevisions(entryDir string) ([]string, error) {
	snapDir := filepath.Join(entryDir, "snapshots")

	if rev := mainRevision(entryDir); rev != "" {
		revDir := filepath.Join(snapDir, rev)
		if info, err := os.Stat(revDir); err == nil && info.IsDir() {
			return []string{revDir}, nil
		}
	}

	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading snapshots: %v", ErrStorageError, err)
	}

	var revs []string
	for _, e := range entries {
		if e.IsDir() {
			revs = append(revs, filepath.Join(snapDir, e.Name()))
		}
	}
	sort.Strings(revs)
	return revs, nil
}

// mainRevision reads the revision hash from refs/main, empty if absent.
func mainRevision(entryDir string) string {
	data, err := os.ReadFile(filepath.Join(entryDir, "refs", "main"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
