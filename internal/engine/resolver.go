package engine

import (
	"context"
	"log/slog"

	"github.com/starford/laguz/internal/graph"
)

// Resolve lazily loads files that satisfy currently-unresolved link targets,
// searching the given roots, and folds them into the graph with the same
// fold-and-heal step as the progressive loader. Newly loaded files have
// their own links chased in turn, so a chain A→B→C→D loads B, C, and D
// transitively. Files nobody links to are never loaded.
//
// Cyclic link chains terminate via a processed-identifier set, not a depth
// bound. A target that still cannot be resolved is left absent from the edge
// list; it is only retried when the graph changes again.
func (e *Engine) Resolve(ctx context.Context, g graph.Graph, searchRoots []string) (graph.Graph, graph.Delta, error) {
	var acc graph.Delta
	if len(searchRoots) == 0 {
		return g, acc, nil
	}

	candidates, err := e.enumerate(searchRoots)
	if err != nil {
		return g, acc, err
	}

	processed := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return g, acc, err
		}

		loaded := false
		for _, target := range unresolvedTargets(g) {
			id, ok := e.locateFile(target, g, candidates, processed)
			if !ok {
				continue
			}
			processed[id] = struct{}{}

			data, readErr := e.store.Read(id)
			if readErr != nil {
				e.log.Warn("engine: resolve read failed",
					slog.String("path", id),
					slog.String("error", readErr.Error()))
				continue
			}
			d := e.ComputeDelta(Event{Type: EventAdded, Path: id, Content: data}, g)
			if d.Empty() {
				continue
			}
			g = graph.Apply(g, d)
			acc.Append(d)
			loaded = true
			e.log.Debug("engine: resolved link target",
				slog.String("target", target),
				slog.String("path", id))
		}
		if !loaded {
			break
		}
	}

	if pos := AssignPositions(g); !pos.Empty() {
		g = graph.Apply(g, pos)
		acc.Append(pos)
	}
	return g, acc, nil
}

// unresolvedTargets collects, in deterministic order, every link target in
// the graph that resolves to no existing node.
func unresolvedTargets(g graph.Graph) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range g.IDs() {
		for _, l := range g.Get(id).Links {
			if _, dup := seen[l.Target]; dup {
				continue
			}
			seen[l.Target] = struct{}{}
			if _, ok := resolveTarget(l.Target, g); !ok {
				out = append(out, l.Target)
			}
		}
	}
	return out
}

// locateFile finds an on-disk file satisfying target. Absolute targets are
// checked for literal existence (with .md appended when the extension is
// missing); bare targets are matched against the enumerated search-root
// candidates using the shared scoring. Already-loaded and already-attempted
// files are skipped.
func (e *Engine) locateFile(target string, g graph.Graph, candidates []string, processed map[string]struct{}) (string, bool) {
	if isAbsoluteTarget(target) {
		id := normalizeAbsoluteTarget(target)
		if g.Has(id) {
			return "", false
		}
		if _, done := processed[id]; done {
			return "", false
		}
		if !e.store.Exists(id) {
			return "", false
		}
		return id, true
	}

	fresh := candidates[:0:0]
	for _, c := range candidates {
		if g.Has(c) {
			continue
		}
		if _, done := processed[c]; done {
			continue
		}
		fresh = append(fresh, c)
	}
	return bestCandidate(target, fresh)
}
