// Package watch translates raw fsnotify events into the engine's serialized
// event stream. One watcher goroutine runs per eagerly-loaded root.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/vault"
)

// reconcileDelay debounces the disk-vs-graph diff that follows renames.
const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on root and forwards file change events
// into the dispatcher's channel until ctx is cancelled. The underlying
// watcher delivers events serially and every event is fully translated
// (content read included) before the next is taken.
//
// New directories created at runtime are added to the watch list. Rename
// events fire on the old path only, so the old node is deleted immediately
// and a short reconciliation pass catches the file's reappearance under its
// new name.
func Watch(ctx context.Context, store vault.Provider, root string, events chan<- engine.Event, snapshot func() graph.Graph, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	rootID := vault.NormalizePath(root)
	if err := addDirsRecursive(w, rootID); err != nil {
		return err
	}

	logger.Info("watch: started", slog.String("root", rootID))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	send := func(ev engine.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watch: stopped", slog.String("root", rootID))
			return nil

		case <-reconcileCh:
			reconcile(ctx, store, rootID, events, snapshot, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id := vault.NormalizePath(ev.Name)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, id); addErr != nil {
						logger.Warn("watch: add new dir failed",
							slog.String("path", id),
							slog.String("error", addErr.Error()))
					}
					emitDirContents(ctx, store, id, events, logger)
					continue
				}
			}

			if !vault.IsVaultFile(id) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(id)
				if readErr != nil {
					logger.Warn("watch: read failed",
						slog.String("path", id),
						slog.String("error", readErr.Error()))
					continue
				}
				kind := engine.EventChanged
				if ev.Op&fsnotify.Create != 0 {
					kind = engine.EventAdded
				}
				if !send(engine.Event{Type: kind, Path: id, Content: data}) {
					return nil
				}

			case ev.Op&fsnotify.Remove != 0:
				if !send(engine.Event{Type: engine.EventDeleted, Path: id}) {
					return nil
				}

			case ev.Op&fsnotify.Rename != 0:
				if !send(engine.Event{Type: engine.EventDeleted, Path: id}) {
					return nil
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile diffs disk against the graph snapshot and synthesizes events for
// anything the rename storm left behind: files on disk but missing from the
// graph become added events, graph nodes under root with no backing file
// become deletions.
func reconcile(ctx context.Context, store vault.Provider, rootID string, events chan<- engine.Event, snapshot func() graph.Graph, logger *slog.Logger) {
	files, err := store.Enumerate(rootID)
	if err != nil {
		logger.Warn("watch: reconcile enumerate failed", slog.String("error", err.Error()))
		return
	}
	onDisk := make(map[string]struct{}, len(files))
	for _, f := range files {
		onDisk[f] = struct{}{}
	}

	g := snapshot()
	for _, id := range g.IDs() {
		if !strings.HasPrefix(id, rootID+"/") {
			continue
		}
		if _, ok := onDisk[id]; ok {
			continue
		}
		select {
		case events <- engine.Event{Type: engine.EventDeleted, Path: id}:
			logger.Debug("watch: reconcile removed stale", slog.String("path", id))
		case <-ctx.Done():
			return
		}
	}

	for _, f := range files {
		if g.Has(f) {
			continue
		}
		data, readErr := store.Read(f)
		if readErr != nil {
			continue
		}
		select {
		case events <- engine.Event{Type: engine.EventAdded, Path: f, Content: data}:
			logger.Debug("watch: reconcile added", slog.String("path", f))
		case <-ctx.Done():
			return
		}
	}
}

// emitDirContents emits added events for vault files already present in a
// newly created directory.
func emitDirContents(ctx context.Context, store vault.Provider, dirID string, events chan<- engine.Event, logger *slog.Logger) {
	files, err := store.Enumerate(dirID)
	if err != nil {
		return
	}
	for _, f := range files {
		data, readErr := store.Read(f)
		if readErr != nil {
			continue
		}
		select {
		case events <- engine.Event{Type: engine.EventAdded, Path: f, Content: data}:
			logger.Debug("watch: added from new dir", slog.String("path", f))
		case <-ctx.Done():
			return
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(filepath.FromSlash(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
