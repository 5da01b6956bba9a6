package index

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/fingerprint"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// BuildFull rescans every eligible file, re-embeds everything, rebuilds the
// connection graph, and persists a snapshot. A concurrent call while a build
// is running is a logged no-op. Cancellation between embedding batches leaves
// the index valid but partially embedded; no snapshot is written in that case.
func (ix *Index) BuildFull(ctx context.Context) error {
	if !ix.building.CompareAndSwap(false, true) {
		ix.logger.Info("index: build already running")
		return nil
	}
	defer ix.building.Store(false)

	start := time.Now()
	ix.logger.Info("index: full build started")

	metas, err := ix.files.List("")
	if err != nil {
		return fmt.Errorf("index: build: list: %w", err)
	}

	docs := make(map[string]*Document, len(metas))
	order := make([]string, 0, len(metas))
	for _, m := range metas {
		if !ix.eligible(m.Path) {
			continue
		}
		doc, err := ix.loadDocument(m)
		if err != nil {
			ix.logger.Warn("index: build: load failed",
				slog.String("path", m.Path),
				slog.String("error", err.Error()))
			continue
		}
		if len(doc.PlainText) < ix.opts.MinContentLength {
			continue
		}
		docs[doc.Path] = doc
		order = append(order, doc.Path)
	}

	embs, embedErr := ix.embedAll(ctx, docs, order)

	ix.mu.Lock()
	ix.documents = docs
	ix.embeddings = embs
	ix.rebuildConnectionsLocked()
	ix.lastBuild = time.Now()
	stats := Stats{
		Documents:   len(ix.documents),
		Embeddings:  len(ix.embeddings),
		Connections: len(ix.connections),
	}
	ix.mu.Unlock()

	if embedErr != nil {
		ix.logger.Warn("index: build interrupted",
			slog.Int("documents", stats.Documents),
			slog.Int("embeddings", stats.Embeddings),
			slog.String("error", embedErr.Error()))
		return embedErr
	}

	ix.persistSnapshot(ctx)
	ix.logger.Info("index: full build complete",
		slog.Int("documents", stats.Documents),
		slog.Int("embeddings", stats.Embeddings),
		slog.Int("connections", stats.Connections),
		slog.Duration("took", time.Since(start)))
	return nil
}

// loadDocument reads and parses one file into a Document.
func (ix *Index) loadDocument(m storage.DocumentMeta) (*Document, error) {
	data, err := ix.files.Read(m.Path)
	if err != nil {
		return nil, err
	}

	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	created := res.Created
	if created.IsZero() {
		created = m.CreatedAt
	}
	if created.IsZero() {
		created = m.ModifiedAt
	}

	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(m.Path), path.Ext(m.Path))
	}

	return &Document{
		Path:        m.Path,
		Title:       title,
		Content:     string(data),
		PlainText:   parser.PlainText(res.Body),
		Links:       res.Links,
		Tags:        res.Tags,
		CreatedAt:   created,
		ModifiedAt:  m.ModifiedAt,
		Size:        m.Size,
		Fingerprint: fingerprint.Hash(data),
	}, nil
}

// embedAll embeds the given documents in batches. Failed batches retry one
// text at a time; documents that still fail are logged and skipped. The only
// error returned is context cancellation.
func (ix *Index) embedAll(ctx context.Context, docs map[string]*Document, order []string) (map[string]*Embedding, error) {
	embs := make(map[string]*Embedding, len(order))
	if len(order) == 0 {
		return embs, nil
	}
	if !ix.embedder.Available(ctx) {
		ix.logger.Warn("index: embedding service unavailable, substring search only")
		return embs, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.EmbedConcurrency)

	for lo := 0; lo < len(order); lo += ix.opts.EmbedBatchSize {
		if ctx.Err() != nil {
			break
		}
		batch := order[lo:min(lo+ix.opts.EmbedBatchSize, len(order))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			got := ix.embedBatch(gctx, docs, batch)
			mu.Lock()
			for p, e := range got {
				embs[p] = e
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return embs, err
	}
	return embs, ctx.Err()
}

// embedBatch embeds one batch, falling back to per-text calls when the batch
// call fails. Returns whatever succeeded.
func (ix *Index) embedBatch(ctx context.Context, docs map[string]*Document, batch []string) map[string]*Embedding {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = truncate(docs[p].PlainText, ix.opts.EmbedMaxChars)
	}

	out := make(map[string]*Embedding, len(batch))
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) == len(batch) {
		for i, p := range batch {
			out[p] = newEmbedding(docs[p], texts[i], vecs[i])
		}
		return out
	}
	if err != nil {
		ix.logger.Warn("index: batch embed failed, retrying per document",
			slog.Int("size", len(batch)),
			slog.String("error", err.Error()))
	}

	for i, p := range batch {
		if ctx.Err() != nil {
			return out
		}
		vec, err := ix.embedder.EmbedQuery(ctx, texts[i])
		if err != nil {
			ix.logger.Warn("index: embed failed, document left unembedded",
				slog.String("path", p),
				slog.String("error", err.Error()))
			continue
		}
		out[p] = newEmbedding(docs[p], texts[i], vec)
	}
	return out
}

func newEmbedding(doc *Document, snapshotText string, vec []float32) *Embedding {
	return &Embedding{
		Path:       doc.Path,
		Vector:     vec,
		Snapshot:   snapshotText,
		Tags:       doc.Tags,
		Links:      doc.Links,
		CreatedAt:  doc.CreatedAt,
		ModifiedAt: doc.ModifiedAt,
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
