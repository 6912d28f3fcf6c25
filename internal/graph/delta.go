package graph

// OpType discriminates delta operations.
type OpType string

// Delta operation types.
const (
	OpUpsert OpType = "upsert"
	OpDelete OpType = "delete"
)

// Op is one operation in a delta: either an upsert carrying the new node
// (and, when the node existed before, the previous version so consumers can
// diff old against new) or a delete carrying only the node ID.
type Op struct {
	Type OpType `json:"type"`
	Node *Node  `json:"node,omitempty"`
	Prev *Node  `json:"prev,omitempty"`
	ID   string `json:"id"`
}

// Delta is an ordered sequence of operations. It is the unit of broadcast
// between the engine and every downstream collaborator; consumers must apply
// the operations in the given order.
type Delta struct {
	Ops []Op `json:"ops"`
}

// Upsert appends an upsert operation.
func (d *Delta) Upsert(node, prev *Node) {
	d.Ops = append(d.Ops, Op{Type: OpUpsert, Node: node, Prev: prev, ID: node.ID})
}

// Delete appends a delete operation.
func (d *Delta) Delete(id string) {
	d.Ops = append(d.Ops, Op{Type: OpDelete, ID: id})
}

// Append concatenates other's operations onto d.
func (d *Delta) Append(other Delta) {
	d.Ops = append(d.Ops, other.Ops...)
}

// Empty reports whether the delta has no operations.
func (d Delta) Empty() bool {
	return len(d.Ops) == 0
}

// SnapshotDelta expresses an entire graph as a delta of upserts, in sorted
// ID order. Used to bring a fresh subscriber up to date.
func SnapshotDelta(g Graph) Delta {
	var d Delta
	for _, id := range g.IDs() {
		d.Upsert(g.Get(id), nil)
	}
	return d
}

// Apply returns a new graph with the delta's operations applied in order.
// The input graph is left untouched.
func Apply(g Graph, d Delta) Graph {
	if d.Empty() {
		return g
	}
	out := g.clone()
	for _, op := range d.Ops {
		switch op.Type {
		case OpUpsert:
			out[op.Node.ID] = op.Node
		case OpDelete:
			delete(out, op.ID)
		}
	}
	return out
}
