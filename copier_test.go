package hy3dtools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newTestManager builds a Manager over temp cache and models directories.
func newTestManager(t *testing.T, cacheDir, modelsDir string, opts ...ManagerOption) Manager {
	t.Helper()

	mgr, err := NewManager(Config{CacheDir: cacheDir, ModelsDir: modelsDir}, opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr
}

// writeCacheSnapshot populates a cache entry in the snapshot layout and
// returns the revision directory.
func writeCacheSnapshot(t *testing.T, cacheDir string, ref ModelRef, rev string, files map[string]string) string {
	t.Helper()

	revDir := filepath.Join(cacheDir, cacheEntryName(ref), "snapshots", rev)
	for name, content := range files {
		path := filepath.Join(revDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if len(files) == 0 {
		if err := os.MkdirAll(revDir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return revDir
}

// writeCacheRoot populates a cache entry with files at its root.
func writeCacheRoot(t *testing.T, cacheDir string, ref ModelRef, files map[string]string) {
	t.Helper()

	entryDir := filepath.Join(cacheDir, cacheEntryName(ref))
	for name, content := range files {
		path := filepath.Join(entryDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCopyMissingCache(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	mgr := newTestManager(t, cacheDir, modelsDir)

	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}
	_, err := mgr.Copy(context.Background(), ref)
	if !errors.Is(err, ErrCacheNotFound) {
		t.Fatalf("Copy() error = %v, want ErrCacheNotFound", err)
	}

	// No copy should have happened.
	if _, err := os.Stat(filepath.Join(modelsDir, "tencent")); !os.IsNotExist(err) {
		t.Error("target directory was created despite missing cache entry")
	}
}

func TestCopyWithNullRegistryFile(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	writeCacheSnapshot(t, cacheDir, ref, "abc123", map[string]string{
		"config.json": "{}",
	})
	if err := os.WriteFile(filepath.Join(modelsDir, "copied.json"), []byte("null"), 0644); err != nil {
		t.Fatal(err)
	}

	mgr := newTestManager(t, cacheDir, modelsDir)
	res, err := mgr.Copy(context.Background(), ref)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if res.FilesCopied != 1 {
		t.Errorf("FilesCopied = %d, want 1", res.FilesCopied)
	}

	if _, err := mgr.GetCopied(context.Background(), ref); err != nil {
		t.Errorf("GetCopied() error = %v", err)
	}
}

func TestCopySnapshotLayout(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	writeCacheSnapshot(t, cacheDir, ref, "abc123", map[string]string{
		"config.json":               "{}",
		"weights/model.safetensors": "weights-data",
	})
	// Files outside snapshots/ must be ignored.
	entryDir := filepath.Join(cacheDir, cacheEntryName(ref))
	if err := os.WriteFile(filepath.Join(entryDir, "stray.txt"), []byte("ignore me"), 0644); err != nil {
		t.Fatal(err)
	}

	mgr := newTestManager(t, cacheDir, modelsDir)
	res, err := mgr.Copy(context.Background(), ref)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	if !res.FromSnapshot {
		t.Error("FromSnapshot = false, want true")
	}
	if res.FilesCopied != 2 {
		t.Errorf("FilesCopied = %d, want 2", res.FilesCopied)
	}
	if res.FilesFailed != 0 {
		t.Errorf("FilesFailed = %d, want 0", res.FilesFailed)
	}

	target := filepath.Join(modelsDir, "tencent", "Hunyuan3D-2")
	for _, name := range []string{"config.json", filepath.Join("weights", "model.safetensors")} {
		if _, err := os.Stat(filepath.Join(target, name)); err != nil {
			t.Errorf("missing copied file %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(target, "stray.txt")); !os.IsNotExist(err) {
		t.Error("file outside snapshots/ was copied")
	}
}

func TestCopyRootLayout(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	writeCacheRoot(t, cacheDir, ref, map[string]string{
		"config.json": "{}",
		"model.bin":   "data",
	})

	mgr := newTestManager(t, cacheDir, modelsDir)
	res, err := mgr.Copy(context.Background(), ref)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	if res.FromSnapshot {
		t.Error("FromSnapshot = true, want false")
	}
	if res.FilesCopied != 2 {
		t.Errorf("FilesCopied = %d, want 2", res.FilesCopied)
	}

	target := filepath.Join(modelsDir, "tencent", "Hunyuan3D-2")
	if _, err := os.Stat(filepath.Join(target, "model.bin")); err != nil {
		t.Errorf("missing copied file: %v", err)
	}
}

func TestCopySubfolder(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2", Subfolder: "hunyuan3d-dit-v2-0"}

	writeCacheSnapshot(t, cacheDir, ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}, "abc123", map[string]string{
		"hunyuan3d-dit-v2-0/model.safetensors":   "dit-weights",
		"hunyuan3d-paint-v2-0/model.safetensors": "paint-weights",
	})

	mgr := newTestManager(t, cacheDir, modelsDir)
	res, err := mgr.Copy(context.Background(), ref)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	if res.FilesCopied != 1 {
		t.Errorf("FilesCopied = %d, want 1", res.FilesCopied)
	}

	target := filepath.Join(modelsDir, "tencent", "Hunyuan3D-2", "hunyuan3d-dit-v2-0")
	data, err := os.ReadFile(filepath.Join(target, "model.safetensors"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(data) != "dit-weights" {
		t.Errorf("copied contents = %q, want dit-weights", data)
	}

	// The sibling subfolder must not be staged under this ref's target.
	if _, err := os.Stat(filepath.Join(target, "hunyuan3d-paint-v2-0")); !os.IsNotExist(err) {
		t.Error("sibling subfolder was copied")
	}
}

func TestCopySymlinkedSnapshot(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	// Snapshot files are typically symlinks into the blob store.
	entryDir := filepath.Join(cacheDir, cacheEntryName(ref))
	blobDir := filepath.Join(entryDir, "blobs")
	if err := os.MkdirAll(blobDir, 0755); err != nil {
		t.Fatal(err)
	}
	blob := filepath.Join(blobDir, "sha256-deadbeef")
	if err := os.WriteFile(blob, []byte("blob-data"), 0644); err != nil {
		t.Fatal(err)
	}

	revDir := filepath.Join(entryDir, "snapshots", "abc123")
	if err := os.MkdirAll(revDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(blob, filepath.Join(revDir, "model.bin")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	mgr := newTestManager(t, cacheDir, modelsDir)
	res, err := mgr.Copy(context.Background(), ref)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if res.FilesCopied != 1 {
		t.Errorf("FilesCopied = %d, want 1", res.FilesCopied)
	}

	copied := filepath.Join(modelsDir, "tencent", "Hunyuan3D-2", "model.bin")
	info, err := os.Lstat(copied)
	if err != nil {
		t.Fatalf("stat copied file: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("copied file is a symlink, want regular file")
	}
	data, _ := os.ReadFile(copied)
	if string(data) != "blob-data" {
		t.Errorf("copied contents = %q, want blob-data", data)
	}
}

func TestCopyBestEffortBrokenSymlink(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	revDir := writeCacheSnapshot(t, cacheDir, ref, "abc123", map[string]string{
		"good.bin": "data",
	})
	if err := os.Symlink(filepath.Join(revDir, "missing-blob"), filepath.Join(revDir, "broken.bin")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	mgr := newTestManager(t, cacheDir, modelsDir)
	res, err := mgr.Copy(context.Background(), ref)
	if err != nil {
		t.Fatalf("Copy() error = %v, broken files must not fail the run", err)
	}

	if res.FilesCopied != 1 {
		t.Errorf("FilesCopied = %d, want 1", res.FilesCopied)
	}
	if res.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", res.FilesFailed)
	}
}

func TestCopyIdempotent(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	writeCacheSnapshot(t, cacheDir, ref, "abc123", map[string]string{
		"config.json": "{}",
		"model.bin":   "data",
	})

	mgr := newTestManager(t, cacheDir, modelsDir)
	ctx := context.Background()

	first, err := mgr.Copy(ctx, ref)
	if err != nil {
		t.Fatalf("first Copy() error = %v", err)
	}

	second, err := mgr.Copy(ctx, ref, WithForce())
	if err != nil {
		t.Fatalf("second Copy() error = %v", err)
	}

	if second.FilesCopied != first.FilesCopied {
		t.Errorf("second FilesCopied = %d, want %d", second.FilesCopied, first.FilesCopied)
	}
	if second.BytesCopied != first.BytesCopied {
		t.Errorf("second BytesCopied = %d, want %d", second.BytesCopied, first.BytesCopied)
	}
}

func TestCopyAlreadyCopied(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	writeCacheSnapshot(t, cacheDir, ref, "abc123", map[string]string{"model.bin": "data"})

	mgr := newTestManager(t, cacheDir, modelsDir)
	ctx := context.Background()

	if _, err := mgr.Copy(ctx, ref); err != nil {
		t.Fatalf("first Copy() error = %v", err)
	}

	if _, err := mgr.Copy(ctx, ref); !errors.Is(err, ErrAlreadyCopied) {
		t.Errorf("second Copy() error = %v, want ErrAlreadyCopied", err)
	}
}

func TestCopyProgress(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}

	writeCacheSnapshot(t, cacheDir, ref, "abc123", map[string]string{
		"a.bin": "1",
		"b.bin": "2",
	})

	mgr := newTestManager(t, cacheDir, modelsDir)

	var scanTotal, copyEvents int
	_, err := mgr.Copy(context.Background(), ref, WithProgress(func(p CopyProgress) {
		switch p.Phase {
		case "scan":
			scanTotal = p.FilesTotal
		case "copy":
			copyEvents++
		}
	}))
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	if scanTotal != 2 {
		t.Errorf("scan FilesTotal = %d, want 2", scanTotal)
	}
	if copyEvents != 2 {
		t.Errorf("copy events = %d, want 2", copyEvents)
	}
}

func TestCopyRegistryLifecycle(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()
	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2", Subfolder: "hunyuan3d-dit-v2-0"}

	writeCacheSnapshot(t, cacheDir, ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}, "abc123", map[string]string{
		"hunyuan3d-dit-v2-0/model.safetensors": "dit-weights",
	})

	mgr := newTestManager(t, cacheDir, modelsDir)
	ctx := context.Background()

	if _, err := mgr.GetCopied(ctx, ref); !errors.Is(err, ErrNotCopied) {
		t.Errorf("GetCopied() before copy error = %v, want ErrNotCopied", err)
	}
	if _, err := mgr.Path(ctx, ref); !errors.Is(err, ErrNotCopied) {
		t.Errorf("Path() before copy error = %v, want ErrNotCopied", err)
	}

	if _, err := mgr.Copy(ctx, ref); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	model, err := mgr.GetCopied(ctx, ref)
	if err != nil {
		t.Fatalf("GetCopied() error = %v", err)
	}
	if model.FileCount != 1 {
		t.Errorf("FileCount = %d, want 1", model.FileCount)
	}
	if !model.FromSnapshot {
		t.Error("FromSnapshot = false, want true")
	}
	if model.CopiedAt.IsZero() {
		t.Error("CopiedAt is zero")
	}

	path, err := mgr.Path(ctx, ref)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if path != model.Path {
		t.Errorf("Path() = %q, want %q", path, model.Path)
	}

	list, err := mgr.ListCopied(ctx)
	if err != nil {
		t.Fatalf("ListCopied() error = %v", err)
	}
	if len(list) != 1 || list[0].Ref != ref {
		t.Errorf("ListCopied() = %+v, want one entry for %s", list, ref)
	}

	if err := mgr.Remove(ctx, ref); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("model directory still exists after Remove")
	}
	if _, err := mgr.GetCopied(ctx, ref); !errors.Is(err, ErrNotCopied) {
		t.Errorf("GetCopied() after Remove error = %v, want ErrNotCopied", err)
	}
}

func TestRemoveNotCopied(t *testing.T) {
	mgr := newTestManager(t, t.TempDir(), t.TempDir())

	ref := ModelRef{Owner: "tencent", Name: "Hunyuan3D-2"}
	if err := mgr.Remove(context.Background(), ref); !errors.Is(err, ErrNotCopied) {
		t.Errorf("Remove() error = %v, want ErrNotCopied", err)
	}
}

func TestCopyAllContinuesPastFailures(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := t.TempDir()

	// Only one known model is present in the cache.
	present := DefaultModels[1]
	writeCacheSnapshot(t, cacheDir, ModelRef{Owner: present.Owner, Name: present.Name}, "abc123", map[string]string{
		present.Subfolder + "/model.safetensors": "weights",
	})

	mgr := newTestManager(t, cacheDir, modelsDir)
	results, err := mgr.CopyAll(context.Background())

	if err == nil {
		t.Fatal("CopyAll() error = nil, want joined errors for missing models")
	}
	if !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("CopyAll() error = %v, want to include ErrCacheNotFound", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Ref != present {
		t.Errorf("copied ref = %v, want %v", results[0].Ref, present)
	}
}
