// Package vault abstracts the on-disk side of the note graph: enumerating
// and reading watched directories, atomic write-back of nodes, and the
// path normalization that produces graph node identifiers.
package vault

import (
	"path/filepath"
	"strings"
)

// Provider is the interface for vault file operations. Paths are absolute
// and normalized (forward slashes); they double as graph node identifiers.
type Provider interface {
	// Enumerate returns every markdown and image file under root, directory
	// entries visited in name order for deterministic discovery.
	Enumerate(root string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether path names a regular file.
	Exists(path string) bool
}

// NormalizePath converts p into a node identifier: an absolute, cleaned path
// using forward-slash separators regardless of host OS.
func NormalizePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	return filepath.ToSlash(abs)
}

// fromID converts a node identifier back to a host path.
func fromID(id string) string {
	return filepath.FromSlash(id)
}

var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
}

// IsMarkdown reports whether path names a markdown file.
func IsMarkdown(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}

// IsImage reports whether path names a supported image file.
func IsImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsVaultFile reports whether path is a file the graph tracks.
func IsVaultFile(path string) bool {
	return IsMarkdown(path) || IsImage(path)
}

// skipDir reports whether a directory should be excluded from scanning.
// Hidden directories and tool caches never contribute nodes.
func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "node_modules", "__pycache__":
		return true
	}
	return false
}
