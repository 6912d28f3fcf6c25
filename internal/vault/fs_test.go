package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testFS(t *testing.T) (string, *FS) {
	t.Helper()
	root := NormalizePath(t.TempDir())
	fs, err := NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, fs
}

func TestNewFS_MissingRoot(t *testing.T) {
	if _, err := NewFS("/definitely/not/here"); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	root, fs := testFS(t)
	id := root + "/sub/note.md"

	if err := fs.Write(id, []byte("# Hello\n")); err != nil {
		t.Fatal(err)
	}
	data, err := fs.Read(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# Hello\n" {
		t.Errorf("read = %q", data)
	}
	if !fs.Exists(id) {
		t.Error("Exists = false after write")
	}
}

func TestWrite_RejectsEscapingPaths(t *testing.T) {
	root, fs := testFS(t)

	err := fs.Write("/tmp/outside.md", []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Errorf("err = %v, want escape rejection", err)
	}
	err = fs.Write(root+"/../outside.md", []byte("x"))
	if err == nil {
		t.Error("traversal through .. not rejected")
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	root, fs := testFS(t)
	if err := fs.Write(root+"/a.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.FromSlash(root))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".laguz-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestEnumerate_FiltersAndSorts(t *testing.T) {
	root, fs := testFS(t)
	mustWrite := func(rel, content string) {
		t.Helper()
		p := filepath.Join(filepath.FromSlash(root), rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("b.md", "b")
	mustWrite("a.md", "a")
	mustWrite("img/pic.png", "png")
	mustWrite("notes.txt", "not tracked")
	mustWrite(".hidden/secret.md", "skipped")
	mustWrite("node_modules/dep.md", "skipped")
	mustWrite("__pycache__/cache.md", "skipped")

	files, err := fs.Enumerate(root)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{root + "/a.md", root + "/b.md", root + "/img/pic.png"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestDeleteAndMove(t *testing.T) {
	root, fs := testFS(t)
	a, b := root+"/a.md", root+"/sub/b.md"

	if err := fs.Write(a, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Move(a, b); err != nil {
		t.Fatal(err)
	}
	if fs.Exists(a) || !fs.Exists(b) {
		t.Error("move did not relocate the file")
	}
	if err := fs.Delete(b); err != nil {
		t.Fatal(err)
	}
	if fs.Exists(b) {
		t.Error("delete left the file behind")
	}
}

func TestNormalizePath_ForwardSlashes(t *testing.T) {
	id := NormalizePath(t.TempDir())
	if strings.Contains(id, `\`) {
		t.Errorf("id = %q, want forward slashes only", id)
	}
	if !filepath.IsAbs(filepath.FromSlash(id)) {
		t.Errorf("id = %q, want absolute", id)
	}
}

func TestIsVaultFile(t *testing.T) {
	for _, p := range []string{"a.md", "A.MD", "pic.png", "photo.JPEG", "v.svg"} {
		if !IsVaultFile(p) {
			t.Errorf("IsVaultFile(%q) = false", p)
		}
	}
	for _, p := range []string{"notes.txt", "archive.zip", "Makefile"} {
		if IsVaultFile(p) {
			t.Errorf("IsVaultFile(%q) = true", p)
		}
	}
}
