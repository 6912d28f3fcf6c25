package index

import (
	"os"
	"testing"

	"github.com/starford/laguz/internal/graph"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "laguz-index-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedDelta() graph.Delta {
	var d graph.Delta
	d.Upsert(&graph.Node{
		ID:      "/v/a.md",
		Title:   "Alpha",
		Content: "Links to beta.",
		Edges:   []graph.Edge{{Target: "/v/b.md", Label: "relates to"}},
		Color:   graph.Some("#fff"),
	}, nil)
	d.Upsert(&graph.Node{
		ID:      "/v/b.md",
		Title:   "Beta",
		Content: "Plain body.",
	}, nil)
	return d
}

func TestApplyDelta_UpsertAndBacklinks(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(seedDelta()); err != nil {
		t.Fatal(err)
	}

	ids, err := db.AllIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 nodes", ids)
	}

	bl, err := db.Backlinks("/v/b.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0] != "/v/a.md" {
		t.Errorf("backlinks = %v, want [/v/a.md]", bl)
	}
}

func TestApplyDelta_EdgeReplacement(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(seedDelta()); err != nil {
		t.Fatal(err)
	}

	// Re-upsert a without its edge; the old edge row must go away.
	var d graph.Delta
	d.Upsert(&graph.Node{ID: "/v/a.md", Title: "Alpha"}, nil)
	if err := db.ApplyDelta(d); err != nil {
		t.Fatal(err)
	}

	bl, err := db.Backlinks("/v/b.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 0 {
		t.Errorf("backlinks = %v, want none after edge removal", bl)
	}
}

func TestApplyDelta_Delete(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(seedDelta()); err != nil {
		t.Fatal(err)
	}

	var d graph.Delta
	d.Delete("/v/a.md")
	if err := db.ApplyDelta(d); err != nil {
		t.Fatal(err)
	}

	ids, err := db.AllIDs()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ids["/v/a.md"]; ok {
		t.Error("deleted node still archived")
	}
	bl, err := db.Backlinks("/v/b.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 0 {
		t.Errorf("backlinks = %v, want edges gone with their source", bl)
	}
}

func TestApplyDelta_EmptyIsNoop(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(graph.Delta{}); err != nil {
		t.Fatal(err)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(seedDelta()); err != nil {
		t.Fatal(err)
	}

	results, err := db.Search("beta", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("no results for body match")
	}
	found := false
	for _, r := range results {
		if r.ID == "/v/a.md" {
			found = true
		}
	}
	if !found {
		t.Errorf("results = %v, want a hit on /v/a.md body", results)
	}
}

func TestSearch_TitleMatch(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(seedDelta()); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search("Alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != "/v/a.md" {
		t.Errorf("results = %v, want title hit on /v/a.md", results)
	}
}

func TestReset(t *testing.T) {
	db := testDB(t)
	if err := db.ApplyDelta(seedDelta()); err != nil {
		t.Fatal(err)
	}
	if err := db.Reset(); err != nil {
		t.Fatal(err)
	}
	ids, err := db.AllIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty archive after reset", ids)
	}
}
