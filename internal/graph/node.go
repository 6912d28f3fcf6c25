// Package graph defines the in-memory note graph: nodes keyed by normalized
// absolute file path, directed edges derived from wikilinks, and the delta
// operations used to transform one graph value into the next.
package graph

import "sort"

// Position is a saved 2D placement for a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field is one extra frontmatter key/value pair. Order is preserved from the
// source document so write-back does not shuffle user metadata.
type Field struct {
	Key   string
	Value any
}

// LinkRef is a raw outgoing link target as written in the file, before
// resolution against the graph. Label carries surrounding link context
// (an alias or a list-item prefix), possibly empty.
type LinkRef struct {
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Edge is a resolved directed edge. The source is the owning node; Target is
// the identifier of an existing node in the same graph.
type Edge struct {
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Node is one note in the graph. ID doubles as the on-disk location: a
// normalized absolute path with forward-slash separators.
type Node struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Checksum string `json:"checksum"`

	// Links are the raw parsed targets; Edges are the subset that resolves
	// to existing node IDs. Edges are recomputed wholesale whenever the
	// node's content changes or the surrounding graph heals.
	Links []LinkRef `json:"links,omitempty"`
	Edges []Edge    `json:"edges,omitempty"`

	Color    Option[string]   `json:"-"`
	Position Option[Position] `json:"-"`
	Extra    []Field          `json:"-"`

	// IsContext marks derived/composite nodes; Aggregates lists the node
	// IDs such a node summarizes.
	IsContext  bool     `json:"is_context,omitempty"`
	Aggregates []string `json:"aggregates,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Links = append([]LinkRef(nil), n.Links...)
	c.Edges = append([]Edge(nil), n.Edges...)
	c.Extra = append([]Field(nil), n.Extra...)
	c.Aggregates = append([]string(nil), n.Aggregates...)
	return &c
}

// EdgeTargets returns the resolved edge targets in order.
func (n *Node) EdgeTargets() []string {
	out := make([]string, len(n.Edges))
	for i, e := range n.Edges {
		out[i] = e.Target
	}
	return out
}

// HasEdge reports whether the node already has a resolved edge to target.
func (n *Node) HasEdge(target string) bool {
	for _, e := range n.Edges {
		if e.Target == target {
			return true
		}
	}
	return false
}

// SameEdges reports whether two edge lists are identical (order included).
func SameEdges(a, b []Edge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Graph is an immutable-style mapping from node ID to node. Transformations
// never mutate a graph in place; Apply builds a new value from the old one.
type Graph map[string]*Node

// New returns an empty graph.
func New() Graph {
	return Graph{}
}

// Get returns the node for id, or nil.
func (g Graph) Get(id string) *Node {
	return g[id]
}

// Has reports whether id exists in the graph.
func (g Graph) Has(id string) bool {
	_, ok := g[id]
	return ok
}

// Len returns the node count.
func (g Graph) Len() int {
	return len(g)
}

// IDs returns all node IDs sorted for deterministic iteration.
func (g Graph) IDs() []string {
	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// clone returns a shallow copy of the graph map. Node pointers are shared;
// ops replace whole nodes, never edit them in place.
func (g Graph) clone() Graph {
	c := make(Graph, len(g)+1)
	for id, n := range g {
		c[id] = n
	}
	return c
}
