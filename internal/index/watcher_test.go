package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// watchedIndex builds the vault, then starts the reconcile loop and the
// watcher in the background.
func watchedIndex(t *testing.T, ix *Index) {
	t.Helper()
	if err := ix.BuildFull(context.Background()); err != nil {
		t.Fatalf("BuildFull: %v", err)
	}

	files, ok := ix.files.(*storage.FS)
	if !ok {
		t.Fatal("index is not backed by storage.FS")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go ix.Run(ctx)
	go Watch(ctx, ix, files, testLogger())
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, ix, _ := newTestIndex(t, Options{})
	watchedIndex(t, ix)

	testutil.WriteDoc(t, dir, "new.md", "A brand new document appears in the vault.")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := ix.Get("new.md")
		return ok
	}, "new file not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, ix, _ := newTestIndex(t, Options{})
	testutil.WriteDoc(t, dir, "del.md", "This document is about to be deleted from disk.")
	watchedIndex(t, ix)

	if _, ok := ix.Get("del.md"); !ok {
		t.Fatal("precondition: del.md should be indexed")
	}
	if err := os.Remove(filepath.Join(dir, "del.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := ix.Get("del.md")
		return !ok
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, ix, _ := newTestIndex(t, Options{})
	testutil.WriteDoc(t, dir, "old.md", "A document that is going to move to a new path.")
	watchedIndex(t, ix)

	if err := os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, oldOK := ix.Get("old.md")
		_, newOK := ix.Get("renamed.md")
		return !oldOK && newOK
	}, "rename should drop the old path and index the new one")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, ix, _ := newTestIndex(t, Options{})
	watchedIndex(t, ix)

	sub := filepath.Join(dir, "subdir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	testutil.WriteDoc(t, dir, "subdir/deep.md", "A document created inside a brand new directory.")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, ok := ix.Get("subdir/deep.md")
		return ok
	}, "file in new subdir not indexed by watcher")
}
