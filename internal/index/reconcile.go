package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/storage"
)

// ReconcileStats counts what one reconcile pass did.
type ReconcileStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Refreshed int `json:"refreshed"`
	Removed   int `json:"removed"`
}

func (s ReconcileStats) changed() bool {
	return s.Added+s.Updated+s.Removed > 0
}

// Reconcile diffs the index against the file store and applies the delta.
// Files are classified by stored size+mtime first; a candidate is then
// re-fingerprinted, and only a fingerprint change triggers re-embedding
// (a touch without an edit refreshes metadata and skips the embed).
// Removed files drop their document, embedding, and incident connections.
// Connections are recomputed for touched documents only. Concurrent calls
// serialize; a snapshot is persisted when anything changed.
func (ix *Index) Reconcile(ctx context.Context) (ReconcileStats, error) {
	ix.reconcileMu.Lock()
	defer ix.reconcileMu.Unlock()

	var stats ReconcileStats

	metas, err := ix.files.List("")
	if err != nil {
		return stats, fmt.Errorf("index: reconcile: list: %w", err)
	}

	type candidate struct {
		meta  storage.DocumentMeta
		isNew bool
	}
	var candidates []candidate
	var removed []string
	disk := make(map[string]struct{}, len(metas))

	ix.mu.RLock()
	for _, m := range metas {
		if !ix.eligible(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}
		cur, ok := ix.documents[m.Path]
		if !ok {
			candidates = append(candidates, candidate{m, true})
			continue
		}
		if cur.Size != m.Size || !cur.ModifiedAt.Equal(m.ModifiedAt) {
			candidates = append(candidates, candidate{m, false})
		}
	}
	for p := range ix.documents {
		if _, ok := disk[p]; !ok {
			removed = append(removed, p)
		}
	}
	ix.mu.RUnlock()

	if len(candidates) == 0 && len(removed) == 0 {
		return stats, nil
	}

	var touchedDocs []*Document // content changed, needs embed + edge recompute
	var refreshed []*Document   // metadata-only change, keeps its embedding
	var dropped []string        // shrank below the minimum, remove
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		doc, err := ix.loadDocument(c.meta)
		if err != nil {
			ix.logger.Warn("index: reconcile: load failed",
				slog.String("path", c.meta.Path),
				slog.String("error", err.Error()))
			continue
		}
		if len(doc.PlainText) < ix.opts.MinContentLength {
			if !c.isNew {
				dropped = append(dropped, doc.Path)
			}
			continue
		}
		if !c.isNew {
			ix.mu.RLock()
			prev := ix.documents[doc.Path]
			same := prev != nil && prev.Fingerprint == doc.Fingerprint
			ix.mu.RUnlock()
			if same {
				refreshed = append(refreshed, doc)
				continue
			}
			stats.Updated++
		} else {
			stats.Added++
		}
		touchedDocs = append(touchedDocs, doc)
	}

	byPath := make(map[string]*Document, len(touchedDocs))
	order := make([]string, 0, len(touchedDocs))
	for _, d := range touchedDocs {
		byPath[d.Path] = d
		order = append(order, d.Path)
	}
	embs, err := ix.embedAll(ctx, byPath, order)
	if err != nil {
		// Cancelled mid-embed: apply nothing, the next pass redoes the work.
		return ReconcileStats{}, err
	}

	ix.mu.Lock()
	for _, d := range refreshed {
		if prev, ok := ix.documents[d.Path]; ok {
			d.Backlinks = prev.Backlinks
		}
		ix.documents[d.Path] = d
		if e, ok := ix.embeddings[d.Path]; ok {
			cp := *e
			cp.ModifiedAt = d.ModifiedAt
			ix.embeddings[d.Path] = &cp
		}
		stats.Refreshed++
	}

	touched := make(map[string]struct{}, len(touchedDocs)+len(removed)+len(dropped))
	for _, d := range touchedDocs {
		ix.documents[d.Path] = d
		if e, ok := embs[d.Path]; ok {
			ix.embeddings[d.Path] = e
		} else {
			// Content changed but embedding failed: a stale vector is
			// worse than none.
			delete(ix.embeddings, d.Path)
		}
		touched[d.Path] = struct{}{}
	}
	for _, p := range removed {
		delete(ix.documents, p)
		delete(ix.embeddings, p)
		touched[p] = struct{}{}
		stats.Removed++
	}
	for _, p := range dropped {
		delete(ix.documents, p)
		delete(ix.embeddings, p)
		touched[p] = struct{}{}
		stats.Removed++
	}
	if len(touched) > 0 {
		ix.recomputeConnectionsLocked(touched)
	}
	ix.lastReconcile = time.Now()
	ix.mu.Unlock()

	if ix.opts.OnIndexed != nil {
		for _, d := range touchedDocs {
			ix.opts.OnIndexed(d.Path)
		}
	}
	if ix.opts.OnRemoved != nil {
		for _, p := range removed {
			ix.opts.OnRemoved(p)
		}
		for _, p := range dropped {
			ix.opts.OnRemoved(p)
		}
	}

	if stats.changed() {
		ix.persistSnapshot(ctx)
		ix.logger.Info("index: reconcile complete",
			slog.Int("added", stats.Added),
			slog.Int("updated", stats.Updated),
			slog.Int("refreshed", stats.Refreshed),
			slog.Int("removed", stats.Removed))
	} else if stats.Refreshed > 0 {
		ix.logger.Debug("index: reconcile refreshed metadata",
			slog.Int("refreshed", stats.Refreshed))
	}
	return stats, nil
}

// TriggerReconcile requests an asynchronous reconcile pass from the Run
// loop. Triggers arriving while one is already pending are coalesced.
func (ix *Index) TriggerReconcile() {
	select {
	case ix.reconcileCh <- struct{}{}:
	default:
	}
}

// Run drives periodic and trigger-driven reconciliation until ctx ends.
func (ix *Index) Run(ctx context.Context) error {
	ticker := time.NewTicker(ix.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-ix.reconcileCh:
		}
		if _, err := ix.Reconcile(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			ix.logger.Warn("index: reconcile failed", slog.String("error", err.Error()))
		}
	}
}
