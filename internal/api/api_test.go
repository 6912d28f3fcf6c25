package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/index"
	"github.com/starford/laguz/internal/testutil"
)

func newTestAPI(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := engine.New(store, 0, logger)
	g, err := eng.Load(context.Background(), []string{root})
	if err != nil {
		t.Fatal(err)
	}

	disp := engine.NewDispatcher(eng, engine.NewEchoGuard(2*time.Second), g, nil, logger)
	disp.Register(index.NewArchive(db, logger))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go disp.Run(ctx) //nolint:errcheck

	srv := httptest.NewServer(NewRouter(NewService(disp, db), false, "", nil))
	t.Cleanup(srv.Close)
	return srv, root
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func createNode(t *testing.T, srv *httptest.Server, path, content string) NodeView {
	t.Helper()
	resp, data := doJSON(t, http.MethodPost, srv.URL+"/nodes", map[string]string{
		"path":    path,
		"content": content,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, data)
	}
	var n NodeView
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCreateAndGetNode(t *testing.T) {
	srv, root := newTestAPI(t)

	n := createNode(t, srv, root+"/n.md", "# My Note\nBody.")
	if n.Title != "My Note" {
		t.Errorf("title = %q", n.Title)
	}

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/nodes"+n.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got NodeView
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != n.ID || got.Title != "My Note" {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateNode_Duplicate(t *testing.T) {
	srv, root := newTestAPI(t)
	createNode(t, srv, root+"/dup.md", "# Dup")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/nodes", map[string]string{
		"path":    root + "/dup.md",
		"content": "# Again",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	srv, root := newTestAPI(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/nodes"+root+"/ghost.md", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateNode_ChecksumGuard(t *testing.T) {
	srv, root := newTestAPI(t)
	n := createNode(t, srv, root+"/n.md", "# V1")

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/nodes"+n.ID,
		map[string]string{"content": "# V2"},
		map[string]string{"If-Match": "stale-checksum"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stale update status = %d, want 409", resp.StatusCode)
	}

	resp, data := doJSON(t, http.MethodPut, srv.URL+"/nodes"+n.ID,
		map[string]string{"content": "# V2"},
		map[string]string{"If-Match": n.Checksum})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", resp.StatusCode, data)
	}
	var updated NodeView
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Title != "V2" {
		t.Errorf("title = %q, want V2", updated.Title)
	}
}

func TestDeleteNode(t *testing.T) {
	srv, root := newTestAPI(t)
	n := createNode(t, srv, root+"/n.md", "# Gone")

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/nodes"+n.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/nodes"+n.ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", resp.StatusCode)
	}
}

func TestGraphEndpoint(t *testing.T) {
	srv, root := newTestAPI(t)
	createNode(t, srv, root+"/target.md", "# Target")
	createNode(t, srv, root+"/source.md", "See [[target]]")

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/graph", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view GraphView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(view.Nodes))
	}
	if len(view.Edges) != 1 || view.Edges[0].Target != root+"/target.md" {
		t.Errorf("edges = %+v, want source -> target", view.Edges)
	}
}

func TestSetPositions(t *testing.T) {
	srv, root := newTestAPI(t)
	n := createNode(t, srv, root+"/n.md", "# N")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/positions", []PositionUpdate{
		{ID: n.ID, X: 42, Y: -7},
		{ID: root + "/ghost.md", X: 1, Y: 1}, // unknown ids are skipped
	}, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	_, data := doJSON(t, http.MethodGet, srv.URL+"/nodes"+n.ID, nil, nil)
	var got NodeView
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Position == nil || got.Position.X != 42 || got.Position.Y != -7 {
		t.Errorf("position = %+v, want {42 -7}", got.Position)
	}
}

func TestSearchAndBacklinks(t *testing.T) {
	srv, root := newTestAPI(t)
	createNode(t, srv, root+"/target.md", "# Target\nUnmistakable phrase.")
	createNode(t, srv, root+"/source.md", "See [[target]]")

	resp, data := doJSON(t, http.MethodGet, srv.URL+"/search?q=Unmistakable", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	var sr struct {
		Results []index.SearchResult `json:"results"`
	}
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatal(err)
	}
	if len(sr.Results) != 1 || sr.Results[0].ID != root+"/target.md" {
		t.Errorf("results = %+v", sr.Results)
	}

	resp, data = doJSON(t, http.MethodGet, srv.URL+"/backlinks?id="+root+"/target.md", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("backlinks status = %d", resp.StatusCode)
	}
	var bl struct {
		Backlinks []string `json:"backlinks"`
	}
	if err := json.Unmarshal(data, &bl); err != nil {
		t.Fatal(err)
	}
	if len(bl.Backlinks) != 1 || bl.Backlinks[0] != root+"/source.md" {
		t.Errorf("backlinks = %v", bl.Backlinks)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(true, "s3cret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, _ := doJSON(t, http.MethodGet, srv.URL, nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL, nil, map[string]string{"Authorization": "Bearer s3cret"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL, nil, map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", resp.StatusCode)
	}
}
