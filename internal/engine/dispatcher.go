package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/vault"
)

// Subscriber receives every accepted delta, in order. Implementations must
// apply a delta's operations in the given sequence; reordering can
// transiently break the edges-reference-existing-nodes invariant.
type Subscriber interface {
	ApplyDelta(graph.Delta)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(graph.Delta)

// ApplyDelta calls f.
func (f SubscriberFunc) ApplyDelta(d graph.Delta) { f(d) }

// writeReq is an application-originated mutation executed on the dispatcher
// goroutine, keeping the single-writer invariant intact.
type writeReq struct {
	fn    func(g graph.Graph) (graph.Delta, error)
	reply chan error
}

// Dispatcher owns the live graph. One goroutine processes watcher events and
// application writes to completion, one at a time; readers get consistent
// snapshots through an atomic whole-value swap and never observe a
// half-applied graph.
type Dispatcher struct {
	eng       *Engine
	guard     *EchoGuard
	lazyRoots []string
	log       *slog.Logger

	events chan Event
	writes chan writeReq
	snap   atomic.Value // graph.Graph
	subs   []Subscriber
}

// NewDispatcher creates a dispatcher seeded with the initial graph.
// lazyRoots are the read-only-when-linked directories searched after every
// accepted delta.
func NewDispatcher(eng *Engine, guard *EchoGuard, initial graph.Graph, lazyRoots []string, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		eng:       eng,
		guard:     guard,
		lazyRoots: lazyRoots,
		log:       log,
		events:    make(chan Event, 256),
		writes:    make(chan writeReq),
	}
	d.snap.Store(initial)
	return d
}

// Register adds a delta subscriber. Call before Run.
func (d *Dispatcher) Register(s Subscriber) {
	d.subs = append(d.subs, s)
}

// Events returns the channel the watcher feeds. Delivery is serialized; the
// dispatcher finishes each event before taking the next.
func (d *Dispatcher) Events() chan<- Event {
	return d.events
}

// Snapshot returns the current graph value.
func (d *Dispatcher) Snapshot() graph.Graph {
	return d.snap.Load().(graph.Graph)
}

// Run processes events and writes until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher: stopped")
			return nil
		case ev := <-d.events:
			d.handleEvent(ctx, ev)
		case req := <-d.writes:
			req.reply <- d.handleWrite(ctx, req.fn)
		}
	}
}

// handleEvent runs one file-system event through the pipeline:
// delta computation, echo suppression, graph mutation, broadcast, and a
// resolve-on-link pass for any newly-unresolved targets.
func (d *Dispatcher) handleEvent(ctx context.Context, ev Event) {
	g := d.Snapshot()
	delta := d.eng.ComputeDelta(ev, g)
	if delta.Empty() {
		return
	}
	if d.guard.IsOwnRecentWrite(delta) {
		d.log.Debug("dispatcher: suppressed own-write echo", slog.String("path", ev.Path))
		return
	}
	d.commit(ctx, g, delta)
}

// handleWrite executes an application-originated mutation.
func (d *Dispatcher) handleWrite(ctx context.Context, fn func(graph.Graph) (graph.Delta, error)) error {
	g := d.Snapshot()
	delta, err := fn(g)
	if err != nil {
		return err
	}
	if delta.Empty() {
		return nil
	}
	d.commit(ctx, g, delta)
	return nil
}

// commit applies and broadcasts a delta, then runs the lazy resolve pass.
func (d *Dispatcher) commit(ctx context.Context, g graph.Graph, delta graph.Delta) {
	g = graph.Apply(g, delta)
	d.snap.Store(g)
	d.broadcast(delta)

	resolved, extra, err := d.eng.Resolve(ctx, g, d.lazyRoots)
	if err != nil {
		d.log.Warn("dispatcher: resolve pass failed", slog.String("error", err.Error()))
		return
	}
	if !extra.Empty() {
		d.snap.Store(resolved)
		d.broadcast(extra)
	}
}

// broadcast delivers one delta to every registered subscriber, atomically as
// a single ordered sequence.
func (d *Dispatcher) broadcast(delta graph.Delta) {
	for _, s := range d.subs {
		s.ApplyDelta(delta)
	}
}

// submit runs fn on the dispatcher goroutine and waits for the result.
func (d *Dispatcher) submit(ctx context.Context, fn func(graph.Graph) (graph.Delta, error)) error {
	req := writeReq{fn: fn, reply: make(chan error, 1)}
	select {
	case d.writes <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteContent persists raw markdown content for a node, records the write
// with the echo guard, and folds the change into the graph. The subsequent
// watcher event for the same bytes is recognized as an echo and dropped.
func (d *Dispatcher) WriteContent(ctx context.Context, path string, content []byte) error {
	id := vault.NormalizePath(path)
	return d.submit(ctx, func(g graph.Graph) (graph.Delta, error) {
		return d.persist(g, id, content)
	})
}

// WriteNode serializes node metadata and content back to its markdown file.
func (d *Dispatcher) WriteNode(ctx context.Context, node *graph.Node) error {
	return d.submit(ctx, func(g graph.Graph) (graph.Delta, error) {
		data, err := vault.Render(node)
		if err != nil {
			return graph.Delta{}, err
		}
		return d.persist(g, node.ID, data)
	})
}

// SetPosition saves a node position. Markdown nodes persist it into their
// frontmatter; image nodes keep it in memory only.
func (d *Dispatcher) SetPosition(ctx context.Context, id string, pos graph.Position) error {
	id = vault.NormalizePath(id)
	return d.submit(ctx, func(g graph.Graph) (graph.Delta, error) {
		n := g.Get(id)
		if n == nil {
			return graph.Delta{}, apperr.ErrNotFound
		}
		moved := n.Clone()
		moved.Position = graph.Some(pos)

		if !vault.IsMarkdown(id) {
			var delta graph.Delta
			delta.Upsert(moved, n)
			return delta, nil
		}

		data, err := vault.Render(moved)
		if err != nil {
			return graph.Delta{}, err
		}
		return d.persist(g, id, data)
	})
}

// ResolvePending re-runs the lazy-root resolve pass on the dispatcher
// goroutine. Used by the periodic retry for link targets that were missing
// on disk when first referenced.
func (d *Dispatcher) ResolvePending(ctx context.Context) error {
	return d.submit(ctx, func(g graph.Graph) (graph.Delta, error) {
		_, extra, err := d.eng.Resolve(ctx, g, d.lazyRoots)
		return extra, err
	})
}

// RemoveNode deletes the file and folds the removal into the graph.
func (d *Dispatcher) RemoveNode(ctx context.Context, id string) error {
	id = vault.NormalizePath(id)
	return d.submit(ctx, func(g graph.Graph) (graph.Delta, error) {
		if !g.Has(id) {
			return graph.Delta{}, apperr.ErrNotFound
		}
		if err := d.eng.store.Delete(id); err != nil {
			return graph.Delta{}, err
		}
		delta := d.eng.ComputeDelta(Event{Type: EventDeleted, Path: id}, g)
		d.guard.RecordOwnWrite(delta)
		return delta, nil
	})
}

// persist writes content to disk and produces the resulting delta, recorded
// with the echo guard before the watcher can observe the write.
func (d *Dispatcher) persist(g graph.Graph, id string, content []byte) (graph.Delta, error) {
	if err := d.eng.store.Write(id, content); err != nil {
		return graph.Delta{}, err
	}
	delta := d.eng.ComputeDelta(Event{Type: EventChanged, Path: id, Content: content}, g)
	if delta.Empty() {
		return graph.Delta{}, fmt.Errorf("engine: written content for %s did not parse", id)
	}
	d.guard.RecordOwnWrite(delta)
	return delta, nil
}
