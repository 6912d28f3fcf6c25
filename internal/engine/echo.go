package engine

import (
	"sync"
	"time"

	"github.com/starford/laguz/internal/graph"
)

// EchoGuard remembers deltas the application itself just wrote to disk so
// the resulting file-system events are not reprocessed as external changes.
//
// Matching compares node identifier plus content checksum rather than delta
// object identity: by the time the watcher echo arrives it is a different
// data structure carrying the same bytes. Entries expire after the window
// whether or not they matched, bounding memory.
type EchoGuard struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string][]echoEntry
	now     func() time.Time
}

type echoEntry struct {
	checksum string
	deleted  bool
	at       time.Time
}

// NewEchoGuard creates a guard with the given suppression window.
func NewEchoGuard(window time.Duration) *EchoGuard {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &EchoGuard{
		window:  window,
		entries: make(map[string][]echoEntry),
		now:     time.Now,
	}
}

// RecordOwnWrite registers a delta the application has just persisted.
// Call it immediately after the disk write, before the watcher can echo.
func (eg *EchoGuard) RecordOwnWrite(d graph.Delta) {
	eg.mu.Lock()
	defer eg.mu.Unlock()
	now := eg.now()
	eg.pruneLocked(now)
	for _, op := range d.Ops {
		switch op.Type {
		case graph.OpUpsert:
			eg.entries[op.ID] = append(eg.entries[op.ID], echoEntry{checksum: op.Node.Checksum, at: now})
		case graph.OpDelete:
			eg.entries[op.ID] = append(eg.entries[op.ID], echoEntry{deleted: true, at: now})
		}
	}
}

// IsOwnRecentWrite reports whether the delta's primary operation matches a
// recently recorded own write for the same node. Healing operations that
// trail the primary one do not participate in matching; they are recomputed
// identically either way.
func (eg *EchoGuard) IsOwnRecentWrite(d graph.Delta) bool {
	if d.Empty() {
		return false
	}
	op := d.Ops[0]

	eg.mu.Lock()
	defer eg.mu.Unlock()
	eg.pruneLocked(eg.now())

	for _, entry := range eg.entries[op.ID] {
		switch op.Type {
		case graph.OpUpsert:
			if !entry.deleted && entry.checksum == op.Node.Checksum {
				return true
			}
		case graph.OpDelete:
			if entry.deleted {
				return true
			}
		}
	}
	return false
}

// pruneLocked drops expired entries. Callers hold the mutex.
func (eg *EchoGuard) pruneLocked(now time.Time) {
	cutoff := now.Add(-eg.window)
	for id, list := range eg.entries {
		kept := list[:0]
		for _, entry := range list {
			if entry.at.After(cutoff) {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(eg.entries, id)
		} else {
			eg.entries[id] = kept
		}
	}
}
