package engine

import (
	"log/slog"
	"path"
	"strings"

	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/parser"
	"github.com/starford/laguz/internal/vault"
)

// ComputeDelta turns one file-system event into an ordered list of graph
// operations relative to the given snapshot. It is a total function: a
// malformed file contributes an empty delta (logged), never an error.
//
// Added/Changed events produce the primary upsert followed by a healing
// upsert for every other node whose raw links now resolve differently.
// This retroactive edge healing is what makes directory loads converge
// independent of discovery order. Deleted events produce the delete first,
// then the healing upserts that drop edges to the vanished node.
func (e *Engine) ComputeDelta(ev Event, g graph.Graph) graph.Delta {
	switch ev.Type {
	case EventAdded, EventChanged:
		return e.upsertDelta(ev, g)
	case EventDeleted:
		return e.deleteDelta(ev.Path, g)
	default:
		return graph.Delta{}
	}
}

// upsertDelta builds the new node and heals the rest of the graph around it.
func (e *Engine) upsertDelta(ev Event, g graph.Graph) graph.Delta {
	node := e.buildNode(ev)
	if node == nil {
		return graph.Delta{}
	}

	prev := g.Get(node.ID)
	if prev != nil {
		// Optional metadata merges as "prefer new if present, else keep
		// old" so a scan never discards a position saved in memory only.
		node.Position = node.Position.Or(prev.Position)
		node.Color = node.Color.Or(prev.Color)
	}

	// Resolve the node's own links against the graph plus itself, so
	// self-references behave the same regardless of when they load.
	next := graph.Apply(g, deltaOf(node, prev))
	node.Edges = resolveEdges(node.Links, next)

	var d graph.Delta
	d.Upsert(node, prev)
	healed := graph.Apply(g, d)
	appendHealing(&d, g, healed, node.ID)
	return d
}

// deleteDelta removes the node and heals every survivor that pointed at it.
func (e *Engine) deleteDelta(id string, g graph.Graph) graph.Delta {
	if !g.Has(id) {
		return graph.Delta{}
	}
	var d graph.Delta
	d.Delete(id)
	healed := graph.Apply(g, d)
	appendHealing(&d, g, healed, id)
	return d
}

// appendHealing recomputes every other node's edge list against the updated
// graph and appends an upsert for each node whose edges changed. Nodes are
// visited in sorted ID order for deterministic delta content.
func appendHealing(d *graph.Delta, old, healed graph.Graph, changedID string) {
	for _, id := range old.IDs() {
		if id == changedID {
			continue
		}
		n := old.Get(id)
		edges := resolveEdges(n.Links, healed)
		if graph.SameEdges(edges, n.Edges) {
			continue
		}
		fixed := n.Clone()
		fixed.Edges = edges
		d.Upsert(fixed, n)
	}
}

// resolveEdges maps raw link targets to resolved edges, silently omitting
// targets that match no node in g.
func resolveEdges(links []graph.LinkRef, g graph.Graph) []graph.Edge {
	var edges []graph.Edge
	for _, l := range links {
		id, ok := resolveTarget(l.Target, g)
		if !ok {
			continue
		}
		edges = append(edges, graph.Edge{Target: id, Label: l.Label})
	}
	return edges
}

// buildNode parses event content into a node. Image files become leaf nodes
// with no content or links. A nil return means the file contributes nothing
// for this pass.
func (e *Engine) buildNode(ev Event) *graph.Node {
	if vault.IsImage(ev.Path) {
		return &graph.Node{
			ID:       ev.Path,
			Title:    fileStem(ev.Path),
			Checksum: checksum.Sum(ev.Content),
		}
	}

	res, err := parser.Parse(ev.Content)
	if err != nil {
		e.log.Warn("engine: skipping malformed file",
			slog.String("path", ev.Path),
			slog.String("error", err.Error()))
		return nil
	}

	title := res.Title
	if title == "" {
		title = fileStem(ev.Path)
	}
	return &graph.Node{
		ID:         ev.Path,
		Title:      title,
		Content:    res.Body,
		Checksum:   checksum.Sum(ev.Content),
		Links:      res.Links,
		Color:      res.Color,
		Position:   res.Position,
		Extra:      res.Extra,
		IsContext:  res.IsContext,
		Aggregates: res.Aggregates,
	}
}

// deltaOf wraps a single upsert so Apply can be reused for the self-context.
func deltaOf(node, prev *graph.Node) graph.Delta {
	var d graph.Delta
	d.Upsert(node, prev)
	return d
}

// fileStem returns the file name without directory or extension.
func fileStem(id string) string {
	base := path.Base(id)
	return strings.TrimSuffix(base, path.Ext(base))
}
