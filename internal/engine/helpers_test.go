package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/vault"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory vault.Provider keyed by normalized identifiers,
// so tests can use fixed paths like /vault/a.md on any host.
type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

var _ vault.Provider = (*fakeStore)(nil)

func newFakeStore(files map[string]string) *fakeStore {
	s := &fakeStore{files: make(map[string][]byte, len(files))}
	for p, c := range files {
		s.files[p] = []byte(c)
	}
	return s
}

func (s *fakeStore) Enumerate(root string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(root, "/") + "/"
	var out []string
	for f := range s.files {
		if strings.HasPrefix(f, prefix) && vault.IsVaultFile(f) {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) Read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("fake: not found: %s", path)
	}
	return append([]byte(nil), data...), nil
}

func (s *fakeStore) Write(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = append([]byte(nil), content...)
	return nil
}

func (s *fakeStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return fmt.Errorf("fake: not found: %s", path)
	}
	delete(s.files, path)
	return nil
}

func (s *fakeStore) Move(oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[oldPath]
	if !ok {
		return fmt.Errorf("fake: not found: %s", oldPath)
	}
	delete(s.files, oldPath)
	s.files[newPath] = data
	return nil
}

func (s *fakeStore) Exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

// fold applies one added event through ComputeDelta and returns the new graph.
func fold(e *Engine, g graph.Graph, path, content string) graph.Graph {
	d := e.ComputeDelta(Event{Type: EventAdded, Path: path, Content: []byte(content)}, g)
	return graph.Apply(g, d)
}

// edgesOf flattens a graph's edges into "source->target" strings for easy
// order-independent comparison.
func edgesOf(g graph.Graph) []string {
	var out []string
	for _, id := range g.IDs() {
		for _, e := range g.Get(id).Edges {
			out = append(out, id+"->"+e.Target)
		}
	}
	sort.Strings(out)
	return out
}

func sameStrings(a, b []string) bool {
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

func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatal(msg)
}
