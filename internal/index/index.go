package index

import "github.com/starford/laguz/internal/graph"

// GraphArchive defines the archive operations consumers depend on. Depend on
// this interface rather than the concrete *DB to facilitate testing.
type GraphArchive interface {
	ApplyDelta(d graph.Delta) error
	Backlinks(target string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllIDs() (map[string]struct{}, error)
	Reset() error
	Close() error
}

// Verify *DB satisfies GraphArchive at compile time.
var _ GraphArchive = (*DB)(nil)
