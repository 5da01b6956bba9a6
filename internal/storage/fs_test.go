package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, nil)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func writeFile(t *testing.T, s *FS, rel, content string) {
	t.Helper()
	abs := filepath.Join(s.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRead(t *testing.T) {
	s := tempVault(t)
	writeFile(t, s, "note.md", "# Hello\nWorld\n")

	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "# Hello\nWorld\n" {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	writeFile(t, s, "a.md", "a")
	writeFile(t, s, "sub/b.md", "b")
	writeFile(t, s, "readme.txt", "not md")

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Size == 0 {
			t.Errorf("%s: size not populated", it.Path)
		}
		if it.ModifiedAt.IsZero() {
			t.Errorf("%s: modified_at not populated", it.Path)
		}
	}
}

func TestList_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, []string{".md", ".txt"})
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	writeFile(t, s, "a.md", "a")
	writeFile(t, s, "b.txt", "b")
	writeFile(t, s, "c.pdf", "c")

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestList_Subdir(t *testing.T) {
	s := tempVault(t)
	writeFile(t, s, "top.md", "t")
	writeFile(t, s, "sub/inner.md", "i")

	items, err := s.List("sub")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "sub/inner.md" {
		t.Errorf("items = %+v", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/ansuz-does-not-exist-"+t.Name(), nil)
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "ansuz-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name(), nil)
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
