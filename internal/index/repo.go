package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/laguz/internal/graph"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Archive wires a DB to the dispatcher's broadcast, logging rather than
// propagating failures: a broken archive must never stall event processing.
type Archive struct {
	db  *DB
	log *slog.Logger
}

// NewArchive creates a delta subscriber over db.
func NewArchive(db *DB, log *slog.Logger) *Archive {
	return &Archive{db: db, log: log}
}

// ApplyDelta folds one broadcast delta into the archive, in the delta's
// operation order.
func (a *Archive) ApplyDelta(d graph.Delta) {
	if err := a.db.ApplyDelta(d); err != nil {
		a.log.Warn("index: apply delta failed", slog.String("error", err.Error()))
	}
}

// ApplyDelta applies all of a delta's operations inside one transaction, so
// downstream readers never observe a half-applied delta.
func (db *DB) ApplyDelta(d graph.Delta) error {
	if d.Empty() {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, op := range d.Ops {
		switch op.Type {
		case graph.OpUpsert:
			if err := upsertNode(tx, op.Node); err != nil {
				return err
			}
		case graph.OpDelete:
			if err := deleteNode(tx, op.ID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func upsertNode(tx *sql.Tx, n *graph.Node) error {
	isCtx := 0
	if n.IsContext {
		isCtx = 1
	}
	_, err := tx.Exec(`
		INSERT INTO nodes (id, title, checksum, color, is_context, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			color      = excluded.color,
			is_context = excluded.is_context,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, n.Checksum, n.Color.OrElse(""), isCtx, n.Content, time.Now())
	if err != nil {
		return fmt.Errorf("index: upsert node: %w", err)
	}

	if err := ftsUpsert(tx, n.ID, n.Title, n.Content); err != nil {
		return err
	}

	// Replace edges: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM edges WHERE source = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear edges: %w", err)
	}
	for _, e := range n.Edges {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO edges (source, target, label) VALUES (?, ?, ?)`,
			n.ID, e.Target, e.Label); err != nil {
			return fmt.Errorf("index: insert edge: %w", err)
		}
	}
	return nil
}

func deleteNode(tx *sql.Tx, id string) error {
	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM edges WHERE source = ?`, id); err != nil {
		return fmt.Errorf("index: delete edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete node: %w", err)
	}
	return nil
}

// Backlinks returns all node IDs that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM edges WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllIDs returns every archived node ID.
func (db *DB) AllIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("index: all ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// Reset clears the archive. Used when switching watched directories: the
// graph is rebuilt wholesale and the archive follows.
func (db *DB) Reset() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.Exec(`DELETE FROM edges`); err != nil {
		return fmt.Errorf("index: reset edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes`); err != nil {
		return fmt.Errorf("index: reset nodes: %w", err)
	}
	ftsReset(tx)
	return tx.Commit()
}
