package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

const snapshotVersion = 1

type snapshotFile struct {
	Version     int          `json:"version"`
	SavedAt     time.Time    `json:"saved_at"`
	Documents   []*Document  `json:"documents"`
	Embeddings  []*Embedding `json:"embeddings"`
	Connections []Connection `json:"connections"`
}

// persistSnapshot serializes the maps and hands the blob to the snapshot
// store. Failures are logged, not fatal: the index stays usable in memory.
func (ix *Index) persistSnapshot(ctx context.Context) {
	if ix.snaps == nil {
		return
	}
	data, err := ix.encodeSnapshot()
	if err != nil {
		ix.logger.Warn("index: snapshot encode failed", slog.String("error", err.Error()))
		return
	}
	if err := ix.snaps.Save(ctx, data); err != nil {
		ix.logger.Warn("index: snapshot save failed", slog.String("error", err.Error()))
		return
	}
	ix.logger.Debug("index: snapshot saved", slog.Int("bytes", len(data)))
}

func (ix *Index) encodeSnapshot() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snap := snapshotFile{
		Version:     snapshotVersion,
		SavedAt:     time.Now(),
		Documents:   make([]*Document, 0, len(ix.documents)),
		Embeddings:  make([]*Embedding, 0, len(ix.embeddings)),
		Connections: ix.connections,
	}
	for _, d := range ix.documents {
		snap.Documents = append(snap.Documents, d)
	}
	for _, e := range ix.embeddings {
		snap.Embeddings = append(snap.Embeddings, e)
	}
	return json.Marshal(snap)
}

// RestoreSnapshot loads a previously persisted blob. A blob that fails to
// decode or carries an unknown version reports apperr.ErrSnapshotCorrupt so
// the caller can fall back to an empty index and a forced build.
func (ix *Index) RestoreSnapshot(data []byte) error {
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("index: restore: %v: %w", err, apperr.ErrSnapshotCorrupt)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("index: restore: version %d: %w", snap.Version, apperr.ErrSnapshotCorrupt)
	}

	docs := make(map[string]*Document, len(snap.Documents))
	for _, d := range snap.Documents {
		if d == nil || d.Path == "" {
			return fmt.Errorf("index: restore: document without path: %w", apperr.ErrSnapshotCorrupt)
		}
		docs[d.Path] = d
	}
	embs := make(map[string]*Embedding, len(snap.Embeddings))
	for _, e := range snap.Embeddings {
		if e == nil || e.Path == "" {
			continue
		}
		if _, ok := docs[e.Path]; !ok {
			continue // orphan vector
		}
		embs[e.Path] = e
	}

	ix.mu.Lock()
	ix.documents = docs
	ix.embeddings = embs
	ix.connections = snap.Connections
	ix.mu.Unlock()

	ix.logger.Info("index: snapshot restored",
		slog.Int("documents", len(docs)),
		slog.Int("embeddings", len(embs)),
		slog.Int("connections", len(snap.Connections)))
	return nil
}
