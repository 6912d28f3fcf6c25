package api

import (
	"context"
	"errors"
	"sort"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/index"
	"github.com/starford/laguz/internal/vault"
)

// Service coordinates the live graph (via the dispatcher) and the archive
// for the API layer. All mutations go through the dispatcher so the
// single-writer invariant and echo suppression hold for API writes too.
type Service struct {
	disp *engine.Dispatcher
	db   index.GraphArchive
}

// NewService creates an API service.
func NewService(disp *engine.Dispatcher, db index.GraphArchive) *Service {
	return &Service{disp: disp, db: db}
}

// NodeView is the response payload for a single node.
type NodeView struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Checksum   string          `json:"checksum"`
	Color      string          `json:"color,omitempty"`
	Position   *graph.Position `json:"position,omitempty"`
	Edges      []graph.Edge    `json:"edges"`
	Backlinks  []string        `json:"backlinks"`
	IsContext  bool            `json:"is_context,omitempty"`
	Aggregates []string        `json:"aggregates,omitempty"`
}

// GraphView is the whole-graph response payload.
type GraphView struct {
	Nodes []NodeView  `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphEdge is one edge in the whole-graph payload, source made explicit.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Graph returns the current graph snapshot.
func (s *Service) Graph(_ context.Context) GraphView {
	g := s.disp.Snapshot()
	view := GraphView{Nodes: []NodeView{}, Edges: []GraphEdge{}}
	for _, id := range g.IDs() {
		n := g.Get(id)
		view.Nodes = append(view.Nodes, nodeView(n, nil))
		for _, e := range n.Edges {
			view.Edges = append(view.Edges, GraphEdge{Source: id, Target: e.Target, Label: e.Label})
		}
	}
	return view
}

// GetNode returns one node enriched with backlinks from the archive.
func (s *Service) GetNode(_ context.Context, id string) (*NodeView, error) {
	g := s.disp.Snapshot()
	n := g.Get(vault.NormalizePath(id))
	if n == nil {
		return nil, apperr.ErrNotFound
	}
	bl, err := s.db.Backlinks(n.ID)
	if err != nil {
		return nil, err
	}
	sort.Strings(bl)
	v := nodeView(n, bl)
	return &v, nil
}

// CreateNode writes a new markdown file through the dispatcher.
func (s *Service) CreateNode(ctx context.Context, path string, content []byte) (*NodeView, error) {
	id := vault.NormalizePath(path)
	if s.disp.Snapshot().Has(id) {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.disp.WriteContent(ctx, id, content); err != nil {
		return nil, err
	}
	return s.GetNode(ctx, id)
}

// UpdateNode writes updated content with optimistic concurrency: ifMatch,
// when set, must equal the node's current checksum.
func (s *Service) UpdateNode(ctx context.Context, id string, content []byte, ifMatch string) (*NodeView, error) {
	nid := vault.NormalizePath(id)
	current := s.disp.Snapshot().Get(nid)
	if current == nil {
		return nil, apperr.ErrNotFound
	}
	if ifMatch != "" && ifMatch != current.Checksum {
		return nil, apperr.ErrConflict
	}
	if err := s.disp.WriteContent(ctx, nid, content); err != nil {
		return nil, err
	}
	return s.GetNode(ctx, nid)
}

// DeleteNode removes the node's file and graph entry.
func (s *Service) DeleteNode(ctx context.Context, id string) error {
	return s.disp.RemoveNode(ctx, id)
}

// PositionUpdate is one saved placement.
type PositionUpdate struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// SetPositions persists placements for the given nodes. Unknown IDs are
// skipped; any other failure aborts.
func (s *Service) SetPositions(ctx context.Context, updates []PositionUpdate) error {
	for _, u := range updates {
		err := s.disp.SetPosition(ctx, u.ID, graph.Position{X: u.X, Y: u.Y})
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Search delegates full-text search to the archive.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Backlinks returns all node IDs linking to target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	bl, err := s.db.Backlinks(vault.NormalizePath(target))
	if err != nil {
		return nil, err
	}
	if bl == nil {
		bl = []string{}
	}
	return bl, nil
}

func nodeView(n *graph.Node, backlinks []string) NodeView {
	v := NodeView{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		Checksum:   n.Checksum,
		Color:      n.Color.OrElse(""),
		Edges:      nonNilSlice(n.Edges),
		Backlinks:  nonNilSlice(backlinks),
		IsContext:  n.IsContext,
		Aggregates: n.Aggregates,
	}
	if p, ok := n.Position.Get(); ok {
		v.Position = &p
	}
	return v
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
