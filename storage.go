package hy3dtools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultLockTimeout is the default timeout for acquiring file locks.
const DefaultLockTimeout = 30 * time.Second

// EnvModelsDir is the environment variable overriding the models directory.
const EnvModelsDir = "HY3D_MODELS_DIR"

// copiedRegistry represents the contents of the local copied.json file.
// Structure: repoID → subfolder → entry. The empty subfolder key means the
// whole repository was copied.
type copiedRegistry map[string]map[string]copiedEntry

// copiedEntry represents a single entry in the copied registry.
type copiedEntry struct {
	// TotalSize is the total size of all copied files in bytes.
	TotalSize int64 `json:"total_size"`

	// FileCount is the number of copied files.
	FileCount int `json:"file_count"`

	// FromSnapshot records whether the cache snapshot layout was used.
	FromSnapshot bool `json:"from_snapshot"`

	// CopiedAt is when the model was last copied.
	CopiedAt time.Time `json:"copied_at"`
}

// storageInterface defines operations for local filesystem management.
// Implemented by *storage for production and mockStorage for tests.
// This interface enables test isolation without filesystem dependencies.
type storageInterface interface {
	// loadRegistry reads and parses the local copied.json file.
	loadRegistry() (copiedRegistry, error)

	// saveRegistry atomically writes the registry to copied.json.
	saveRegistry(reg copiedRegistry) error

	// modelPath returns the absolute path to a model's directory.
	modelPath(ref ModelRef) string

	// baseDirPath returns the models directory root.
	baseDirPath() string

	// ensureDir creates a directory and all parent directories if they
	// don't exist.
	ensureDir(path string) error

	// removeModelDir removes a model's directory and all its contents.
	removeModelDir(ref ModelRef) error
}

// storage handles all local filesystem operations for the models directory.
// Implements storageInterface.
type storage struct {
	// baseDir is the models directory all operations are rooted at.
	baseDir string

	// lockTimeout is the maximum duration to wait for file lock acquisition.
	lockTimeout time.Duration

	// registryMu protects concurrent in-process access to copied.json.
	registryMu sync.RWMutex
}

// Ensure storage implements storageInterface.
var _ storageInterface = (*storage)(nil)

// newStorage creates a storage instance rooted at the resolved models
// directory. The directory is created if absent; creation failure is the
// only fatal outcome here.
func newStorage(cfg Config) (*storage, error) {
	var baseDir string

	// Priority: env var > Config.ModelsDir > models/ next to the executable
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		baseDir = envDir
	} else if cfg.ModelsDir != "" {
		baseDir = cfg.ModelsDir
	} else {
		defaultDir, err := defaultModelsDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get default models dir: %w", err)
		}
		baseDir = defaultDir
	}

	s := &storage{baseDir: baseDir, lockTimeout: DefaultLockTimeout}

	if err := s.ensureDir(baseDir); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}

	return s, nil
}

// defaultModelsDir returns a models/ directory next to the running
// executable, matching the original project layout where the models
// directory sits beside the setup scripts.
func defaultModelsDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), "models"), nil
}

// loadRegistry reads and parses the local copied.json file.
// Returns an empty registry if the file doesn't exist.
func (s *storage) loadRegistry() (copiedRegistry, error) {
	s.registryMu.RLock()
	defer s.registryMu.RUnlock()

	path := filepath.Join(s.baseDir, "copied.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(copiedRegistry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageError, err)
	}

	var reg copiedRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: invalid copied.json: %v", ErrStorageError, err)
	}
	if reg == nil {
		// A file containing the document "null" unmarshals to a nil map.
		reg = make(copiedRegistry)
	}

	return reg, nil
}

// saveRegistry atomically writes the registry to copied.json.
// Uses cross-process file locking to prevent concurrent writes from
// multiple processes.
func (s *storage) saveRegistry(reg copiedRegistry) error {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	lockPath := filepath.Join(s.baseDir, "copied.json.lock")
	lock, err := newFileLock(lockPath, s.lockTimeout)
	if err != nil {
		return fmt.Errorf("%w: failed to create lock: %v", ErrStorageError, err)
	}
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: failed to acquire lock: %v", ErrStorageError, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal registry: %v", ErrStorageError, err)
	}

	path := filepath.Join(s.baseDir, "copied.json")
	return s.atomicWrite(path, data)
}

// atomicWrite writes data to a file using write-then-rename for atomicity.
func (s *storage) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrStorageError, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write temp file: %v", ErrStorageError, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // cleanup on failure
		return fmt.Errorf("%w: failed to rename temp file: %v", ErrStorageError, err)
	}

	return nil
}

// modelPath returns the absolute path to a model's directory:
// <baseDir>/<owner>/<name>[/<subfolder>]
func (s *storage) modelPath(ref ModelRef) string {
	if ref.Subfolder == "" {
		return filepath.Join(s.baseDir, ref.Owner, ref.Name)
	}
	return filepath.Join(s.baseDir, ref.Owner, ref.Name, ref.Subfolder)
}

// baseDirPath returns the models directory root.
func (s *storage) baseDirPath() string {
	return s.baseDir
}

// ensureDir creates a directory and all parent directories if they don't exist.
func (s *storage) ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %v", ErrStorageError, path, err)
	}
	return nil
}

// removeModelDir removes a model's directory and all its contents.
func (s *storage) removeModelDir(ref ModelRef) error {
	path := s.modelPath(ref)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: failed to remove model directory: %v", ErrStorageError, err)
	}
	return nil
}
