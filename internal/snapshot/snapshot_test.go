package snapshot

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoad_Empty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, []byte("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, []byte("first")) {
		t.Fatalf("got %q, want %q", got, "first")
	}
}

func TestSave_ReplacesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, blob := range []string{"one", "two", "three"} {
		if err := s.Save(ctx, []byte(blob)); err != nil {
			t.Fatalf("Save %q: %v", blob, err)
		}
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "three" {
		t.Fatalf("got %q, want latest blob", got)
	}
}
