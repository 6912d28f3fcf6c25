// Package engine implements the filesystem-to-graph synchronization core:
// the pure delta computer with retroactive edge healing, the progressive
// directory loader, the lazy resolve-on-link pass, the echo guard that
// recognizes the application's own writes, and the single-writer dispatcher
// that ties them to the live graph.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/starford/laguz/internal/vault"
)

// EventType classifies a file-system event.
type EventType string

// File-system event types.
const (
	EventAdded   EventType = "added"
	EventChanged EventType = "changed"
	EventDeleted EventType = "deleted"
)

// Event is one serialized file-system event. Path is a normalized absolute
// identifier; Content carries the raw file bytes for added/changed events
// (nil for deletions and non-text files).
type Event struct {
	Type    EventType
	Path    string
	Content []byte
}

// QuotaError is returned by Load when a scan would discover more files than
// the configured ceiling. It is produced before any file content is read, so
// no partial graph ever exists.
type QuotaError struct {
	Count int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("engine: vault has %d files, exceeding the limit of %d", e.Count, e.Limit)
}

// Engine bundles the pure synchronization algorithms with their two
// dependencies: the vault provider for disk access and a logger for
// per-file warnings. The graph itself is never stored here; every method
// takes a snapshot and returns deltas or new values.
type Engine struct {
	store    vault.Provider
	maxFiles int
	log      *slog.Logger
}

// New creates an engine. maxFiles <= 0 disables the scan ceiling.
func New(store vault.Provider, maxFiles int, log *slog.Logger) *Engine {
	return &Engine{store: store, maxFiles: maxFiles, log: log}
}
