package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS implements Provider backed by the local file system. Write access is
// confined to the configured root directories; reads may range wider because
// link resolution loads files from search roots outside the watched set.
type FS struct {
	roots []string // normalized absolute directories allowed for writes
}

// NewFS creates an FS provider for the given root directories. Every root
// must exist and be a directory.
func NewFS(roots ...string) (*FS, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("vault: at least one root is required")
	}
	norm := make([]string, 0, len(roots))
	for _, r := range roots {
		id := NormalizePath(r)
		info, err := os.Stat(fromID(id))
		if err != nil {
			return nil, fmt.Errorf("vault: stat root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("vault: root is not a directory: %s", id)
		}
		norm = append(norm, id)
	}
	return &FS{roots: norm}, nil
}

// underRoot reports whether id falls inside one of the configured roots.
func (f *FS) underRoot(id string) bool {
	for _, r := range f.roots {
		if id == r || strings.HasPrefix(id, r+"/") {
			return true
		}
	}
	return false
}

// checkWritable rejects paths outside every configured root. Guards against
// traversal through crafted identifiers.
func (f *FS) checkWritable(path string) (string, error) {
	id := NormalizePath(path)
	if !f.underRoot(id) {
		return "", fmt.Errorf("vault: path escapes vault roots: %s", path)
	}
	return id, nil
}

// Enumerate walks root and returns normalized identifiers for every markdown
// and image file, in deterministic name order. Unreadable subtrees are
// skipped rather than failing the walk.
func (f *FS) Enumerate(root string) ([]string, error) {
	rootID := NormalizePath(root)
	if _, err := os.Stat(fromID(rootID)); err != nil {
		return nil, fmt.Errorf("vault: enumerate %s: %w", root, err)
	}
	var out []string
	walk := func(dir string) error { return nil }
	walk = func(dir string) error {
		entries, err := os.ReadDir(fromID(dir))
		if err != nil {
			// Permission or vanished-dir problems drop the subtree for
			// this pass, never the whole scan.
			return nil
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			child := dir + "/" + e.Name()
			if e.IsDir() {
				if skipDir(e.Name()) {
					continue
				}
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			if IsVaultFile(e.Name()) {
				out = append(out, child)
			}
		}
		return nil
	}
	if err := walk(rootID); err != nil {
		return nil, err
	}
	return out, nil
}

// Read returns the raw bytes of the file at path.
func (f *FS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(fromID(NormalizePath(path)))
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path names a regular file.
func (f *FS) Exists(path string) bool {
	info, err := os.Stat(fromID(NormalizePath(path)))
	return err == nil && info.Mode().IsRegular()
}

// Write atomically writes content: tmp file, fsync, rename.
func (f *FS) Write(path string, content []byte) error {
	id, err := f.checkWritable(path)
	if err != nil {
		return err
	}
	abs := fromID(id)
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".laguz-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	id, err := f.checkWritable(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fromID(id)); err != nil {
		return fmt.Errorf("vault: delete %s: %w", path, err)
	}
	return nil
}

// Move renames a file within the vault roots.
func (f *FS) Move(oldPath, newPath string) error {
	oldID, err := f.checkWritable(oldPath)
	if err != nil {
		return err
	}
	newID, err := f.checkWritable(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fromID(newID)), 0o755); err != nil {
		return fmt.Errorf("vault: mkdir for move: %w", err)
	}
	if err := os.Rename(fromID(oldID), fromID(newID)); err != nil {
		return fmt.Errorf("vault: move: %w", err)
	}
	return nil
}
