package engine

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/graph"
)

// readConcurrency bounds the scan's parallel file reads. The fold that
// applies each file's delta stays strictly sequential.
const readConcurrency = 8

// Load performs a full progressive scan of the given root directories and
// returns a consistent graph. The file-count ceiling is enforced before any
// content is read; violations return a *QuotaError by value and no graph.
//
// Files fold in one at a time through the same ComputeDelta used for live
// events, so scan-time and runtime behavior never diverge, and the healing
// inside each fold step makes the final graph independent of discovery
// order. Afterwards every node without a saved position receives one.
func (e *Engine) Load(ctx context.Context, roots []string) (graph.Graph, error) {
	files, err := e.enumerate(roots)
	if err != nil {
		return nil, err
	}
	if e.maxFiles > 0 && len(files) > e.maxFiles {
		return nil, &QuotaError{Count: len(files), Limit: e.maxFiles}
	}

	contents, err := e.readAll(ctx, files)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	for i, f := range files {
		if contents[i] == nil {
			continue // read failed, file contributes nothing this pass
		}
		d := e.ComputeDelta(Event{Type: EventAdded, Path: f, Content: contents[i]}, g)
		g = graph.Apply(g, d)
	}

	g = graph.Apply(g, AssignPositions(g))
	e.log.Info("engine: scan complete",
		slog.Int("files", len(files)),
		slog.Int("nodes", g.Len()))
	return g, nil
}

// enumerate lists every vault file under the roots, deduplicated, preserving
// per-root deterministic order.
func (e *Engine) enumerate(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, root := range roots {
		files, err := e.store.Enumerate(root)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out, nil
}

// readAll reads file contents concurrently, keeping results in discovery
// order. A file that fails to read yields a nil slot and a warning.
func (e *Engine) readAll(ctx context.Context, files []string) ([][]byte, error) {
	contents := make([][]byte, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(readConcurrency)
	for i, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := e.store.Read(f)
			if err != nil {
				e.log.Warn("engine: read failed",
					slog.String("path", f),
					slog.String("error", err.Error()))
				return nil
			}
			contents[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

// AssignPositions returns a delta placing every node that lacks a saved
// position. Nodes with positioned neighbors land near their neighborhood
// average; isolated nodes go on a deterministic ring. Placement depends only
// on node identity and edges, never on discovery order.
func AssignPositions(g graph.Graph) graph.Delta {
	// Inbound map so an unpositioned node can sit near whoever links to it.
	inbound := make(map[string][]string)
	for _, id := range g.IDs() {
		for _, e := range g.Get(id).Edges {
			inbound[e.Target] = append(inbound[e.Target], id)
		}
	}

	var d graph.Delta
	for _, id := range g.IDs() {
		n := g.Get(id)
		if n.Position.IsSome() {
			continue
		}

		var sumX, sumY float64
		count := 0
		neighbors := append(n.EdgeTargets(), inbound[id]...)
		sort.Strings(neighbors)
		for _, nb := range neighbors {
			other := g.Get(nb)
			if other == nil {
				continue
			}
			if p, ok := other.Position.Get(); ok {
				sumX += p.X
				sumY += p.Y
				count++
			}
		}

		var pos graph.Position
		if count > 0 {
			dx, dy := jitter(id, 80)
			pos = graph.Position{X: sumX/float64(count) + dx, Y: sumY/float64(count) + dy}
		} else {
			angle := 2 * math.Pi * float64(idHash(id)%3600) / 3600
			pos = graph.Position{X: 400 * math.Cos(angle), Y: 400 * math.Sin(angle)}
		}

		placed := n.Clone()
		placed.Position = graph.Some(pos)
		d.Upsert(placed, n)
	}
	return d
}

// jitter derives a small deterministic offset from the node identifier.
func jitter(id string, scale float64) (float64, float64) {
	h := idHash(id)
	dx := (float64(h%200)/100 - 1) * scale
	dy := (float64((h/200)%200)/100 - 1) * scale
	return dx, dy
}

func idHash(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}
