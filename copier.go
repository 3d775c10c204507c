package hy3dtools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Copy stages a model from the download cache into the models directory.
func (m *manager) Copy(ctx context.Context, ref ModelRef, opts ...CopyOption) (CopyResult, error) {
	ccfg := newCopyConfig()
	for _, opt := range opts {
		opt(ccfg)
	}

	m.copyMu.Lock()
	defer m.copyMu.Unlock()

	res := CopyResult{Ref: ref}

	if !ccfg.force {
		reg, err := m.storage.loadRegistry()
		if err != nil {
			return res, fmt.Errorf("loading registry: %w", err)
		}
		if _, ok := lookupEntry(reg, ref); ok {
			return res, ErrAlreadyCopied
		}
	}

	cacheDir, err := resolveCacheDir(m.cfg)
	if err != nil {
		return res, fmt.Errorf("resolving cache dir: %w", err)
	}

	srcDirs, fromSnapshot, err := cacheEntry(cacheDir, ref)
	if err != nil {
		return res, err
	}
	res.FromSnapshot = fromSnapshot
	m.debug("resolved cache entry", "model", ref.String(), "sources", len(srcDirs), "snapshot", fromSnapshot)

	// When a subfolder is requested, narrow each source to it. Sources
	// without the subfolder contribute nothing; the copy stays best-effort.
	if ref.Subfolder != "" {
		var narrowed []string
		for _, dir := range srcDirs {
			sub := filepath.Join(dir, ref.Subfolder)
			if info, err := os.Stat(sub); err == nil && info.IsDir() {
				narrowed = append(narrowed, sub)
			}
		}
		srcDirs = narrowed
	}

	target := m.storage.modelPath(ref)
	if err := m.storage.ensureDir(target); err != nil {
		return res, err
	}
	res.TargetDir = target

	if ccfg.progressFn != nil {
		total := 0
		for _, dir := range srcDirs {
			total += countFiles(dir)
		}
		ccfg.progressFn(CopyProgress{Phase: "scan", FilesTotal: total})
	}

	for _, dir := range srcDirs {
		if err := m.copyTree(ctx, dir, target, &res, ccfg.progressFn); err != nil {
			return res, err
		}
	}

	if res.FilesFailed > 0 {
		m.warn("some files could not be copied", "model", ref.String(), "failed", res.FilesFailed)
	}

	if err := m.recordCopy(ref, res); err != nil {
		return res, err
	}

	return res, nil
}

// copyTree copies the contents of src into dst, following symlinks (cache
// snapshots symlink into the blob store). Per-file failures are counted and
// suppressed; only context cancellation aborts the walk.
func (m *manager) copyTree(ctx context.Context, src, dst string, res *CopyResult, progress func(CopyProgress)) error {
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			res.FilesFailed++
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return nil
		}

		if d.IsDir() {
			if err := os.MkdirAll(filepath.Join(dst, rel), 0755); err != nil {
				res.FilesFailed++
				return fs.SkipDir
			}
			return nil
		}

		// Stat follows symlinks; broken links count as failures.
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			if err != nil {
				res.FilesFailed++
			}
			return nil
		}

		n, err := copyFile(path, filepath.Join(dst, rel), info.Mode().Perm())
		if err != nil {
			m.debug("copy failed", "file", rel, "error", err)
			res.FilesFailed++
			return nil
		}

		res.FilesCopied++
		res.BytesCopied += n
		if progress != nil {
			progress(CopyProgress{
				Phase:       "copy",
				FilesDone:   res.FilesCopied,
				CurrentFile: rel,
			})
		}
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return walkErr
		}
		// A missing or unreadable source is a best-effort no-op.
		res.FilesFailed++
	}
	return nil
}

// copyFile copies one file, overwriting any existing target.
func copyFile(src, dst string, perm fs.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// countFiles returns the number of regular files under dir, zero on error.
func countFiles(dir string) int {
	count := 0
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

// recordCopy writes the registry entry for a completed copy.
func (m *manager) recordCopy(ref ModelRef, res CopyResult) error {
	reg, err := m.storage.loadRegistry()
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	setEntry(reg, ref, copiedEntry{
		TotalSize:    res.BytesCopied,
		FileCount:    res.FilesCopied,
		FromSnapshot: res.FromSnapshot,
		CopiedAt:     time.Now(),
	})

	if err := m.storage.saveRegistry(reg); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}
	return nil
}

// CopyAll stages every known model, continuing past per-model failures.
func (m *manager) CopyAll(ctx context.Context, opts ...CopyOption) ([]CopyResult, error) {
	var results []CopyResult
	var errs []error

	for _, ref := range DefaultModels {
		res, err := m.Copy(ctx, ref, opts...)
		if err != nil {
			if errors.Is(err, ErrAlreadyCopied) {
				results = append(results, res)
				continue
			}
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
			continue
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// ListCopied returns all staged models.
func (m *manager) ListCopied(ctx context.Context) ([]CopiedModel, error) {
	reg, err := m.storage.loadRegistry()
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}

	var models []CopiedModel
	for repoID, subfolders := range reg {
		owner, name, ok := splitRepoID(repoID)
		if !ok {
			continue
		}
		for subfolder, entry := range subfolders {
			ref := ModelRef{Owner: owner, Name: name, Subfolder: subfolder}
			models = append(models, CopiedModel{
				Ref:          ref,
				TotalSize:    entry.TotalSize,
				FileCount:    entry.FileCount,
				FromSnapshot: entry.FromSnapshot,
				CopiedAt:     entry.CopiedAt,
				Path:         m.storage.modelPath(ref),
			})
		}
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Ref.String() < models[j].Ref.String()
	})
	return models, nil
}

// GetCopied returns info about a specific staged model.
func (m *manager) GetCopied(ctx context.Context, ref ModelRef) (CopiedModel, error) {
	reg, err := m.storage.loadRegistry()
	if err != nil {
		return CopiedModel{}, fmt.Errorf("loading registry: %w", err)
	}

	entry, ok := lookupEntry(reg, ref)
	if !ok {
		return CopiedModel{}, ErrNotCopied
	}

	return CopiedModel{
		Ref:          ref,
		TotalSize:    entry.TotalSize,
		FileCount:    entry.FileCount,
		FromSnapshot: entry.FromSnapshot,
		CopiedAt:     entry.CopiedAt,
		Path:         m.storage.modelPath(ref),
	}, nil
}

// Path returns the absolute path to a staged model's directory.
func (m *manager) Path(ctx context.Context, ref ModelRef) (string, error) {
	reg, err := m.storage.loadRegistry()
	if err != nil {
		return "", fmt.Errorf("loading registry: %w", err)
	}

	if _, ok := lookupEntry(reg, ref); !ok {
		return "", ErrNotCopied
	}

	return m.storage.modelPath(ref), nil
}

// Remove deletes a staged model's directory and registry entry.
func (m *manager) Remove(ctx context.Context, ref ModelRef) error {
	reg, err := m.storage.loadRegistry()
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	if _, ok := lookupEntry(reg, ref); !ok {
		return ErrNotCopied
	}

	if err := m.storage.removeModelDir(ref); err != nil {
		return err
	}

	deleteEntry(reg, ref)
	if err := m.storage.saveRegistry(reg); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}
	return nil
}

// Registry helpers

func lookupEntry(reg copiedRegistry, ref ModelRef) (copiedEntry, bool) {
	subfolders, ok := reg[ref.RepoID()]
	if !ok {
		return copiedEntry{}, false
	}
	entry, ok := subfolders[ref.Subfolder]
	return entry, ok
}

func setEntry(reg copiedRegistry, ref ModelRef, entry copiedEntry) {
	subfolders, ok := reg[ref.RepoID()]
	if !ok {
		subfolders = make(map[string]copiedEntry)
		reg[ref.RepoID()] = subfolders
	}
	subfolders[ref.Subfolder] = entry
}

func deleteEntry(reg copiedRegistry, ref ModelRef) {
	subfolders, ok := reg[ref.RepoID()]
	if !ok {
		return
	}
	delete(subfolders, ref.Subfolder)
	if len(subfolders) == 0 {
		delete(reg, ref.RepoID())
	}
}

func splitRepoID(repoID string) (owner, name string, ok bool) {
	parts := strings.Split(repoID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
