package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/storage"
)

const watchDebounce = 200 * time.Millisecond

// Watch runs an fsnotify watcher over the vault tree until ctx is cancelled.
// Every relevant change collapses into a debounced reconcile trigger; rename
// needs no special casing because Reconcile diffs the full document sets.
// Directories created at runtime are added to the watch list automatically.
func Watch(ctx context.Context, ix *Index, files *storage.FS, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, files.Root()); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", files.Root()))

	var debounce *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(watchDebounce)
			fire = debounce.C
		} else {
			debounce.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			ix.TriggerReconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New directories are watched from now on; their contents
			// surface in the next reconcile pass.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					schedule()
					continue
				}
			}

			if !files.Matches(ev.Name) {
				continue
			}
			logger.Debug("watcher: change",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
