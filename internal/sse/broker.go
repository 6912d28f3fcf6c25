// Package sse implements a Server-Sent Events broker that streams graph
// deltas to UI clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/laguz/internal/graph"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts graph deltas.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients + layout throttle timestamp). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	layoutMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	deltaCh       chan graph.Delta
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. layoutThrottle bounds how often the coarse
// graph.updated event fires; per-node events are never throttled.
func NewBroker(layoutThrottle time.Duration) *Broker {
	if layoutThrottle <= 0 {
		layoutThrottle = 2 * time.Second
	}

	b := &Broker{
		layoutMin:     layoutThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		deltaCh:       make(chan graph.Delta, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastLayout time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case d := <-b.deltaCh:
			structural := false
			for _, op := range d.Ops {
				switch op.Type {
				case graph.OpUpsert:
					broadcast(Event{Type: "node.upserted", Data: map[string]any{
						"id":    op.ID,
						"title": op.Node.Title,
						"edges": op.Node.Edges,
					}})
					if isStructural(op) {
						structural = true
					}
				case graph.OpDelete:
					broadcast(Event{Type: "node.deleted", Data: map[string]string{"id": op.ID}})
					structural = true
				}
			}

			if structural {
				now := time.Now()
				if now.Sub(lastLayout) >= b.layoutMin {
					lastLayout = now
					broadcast(Event{Type: "graph.updated", Data: map[string]string{}})
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// isStructural distinguishes substantive changes from cosmetic ones using
// the previous node carried on the op: new nodes, title changes, and edge
// changes re-trigger layout; a moved position does not.
func isStructural(op graph.Op) bool {
	if op.Prev == nil {
		return true
	}
	if op.Node.Title != op.Prev.Title {
		return true
	}
	return !graph.SameEdges(op.Node.Edges, op.Prev.Edges)
}

// ApplyDelta implements the dispatcher's subscriber contract.
func (b *Broker) ApplyDelta(d graph.Delta) {
	if b.closed.Load() {
		return
	}
	select {
	case b.deltaCh <- d:
	case <-b.stopped:
	}
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
