// Package index owns the document collection: per-document metadata,
// embedding vectors, and the derived connection graph. It is the single
// source of truth every search tool reads from.
package index

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/snapshot"
	"github.com/starford/ansuz/internal/storage"
)

// Connection kinds.
const (
	KindLink     = "link"
	KindTag      = "tag"
	KindSemantic = "semantic"
)

// Link directions accepted by ConnectionsFor.
const (
	DirIn   = "in"
	DirOut  = "out"
	DirBoth = "both"
)

// Document is one indexed file. Backlinks are derived from other documents'
// outbound links during connection rebuild and are never authored directly.
type Document struct {
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	PlainText   string    `json:"plain_text"`
	Links       []string  `json:"links,omitempty"`
	Backlinks   []string  `json:"backlinks,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Size        int64     `json:"size"`
	Fingerprint string    `json:"fingerprint"`
}

// Embedding is the vector record for one document, with a denormalized copy
// of the fields search needs so scoring never joins back to the document map.
type Embedding struct {
	Path       string    `json:"path"`
	Vector     []float32 `json:"vector"`
	Snapshot   string    `json:"snapshot"`
	Tags       []string  `json:"tags,omitempty"`
	Links      []string  `json:"links,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Connection is a derived edge between two documents. Link edges are
// directed (From links to To); tag and semantic edges are undirected and
// stored once with From < To.
type Connection struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Kind     string  `json:"kind"`
	Strength float64 `json:"strength"`
}

// Stats summarizes the index for status reporting.
type Stats struct {
	Documents         int            `json:"documents"`
	Embeddings        int            `json:"embeddings"`
	Connections       int            `json:"connections"`
	ConnectionsByKind map[string]int `json:"connections_by_kind"`
	Building          bool           `json:"building"`
	LastBuild         time.Time      `json:"last_build"`
	LastReconcile     time.Time      `json:"last_reconcile"`
}

// Options tunes scanning, embedding, and the connection graph.
type Options struct {
	IncludePrefixes   []string
	ExcludePrefixes   []string
	MinContentLength  int
	EmbedBatchSize    int
	EmbedConcurrency  int
	EmbedMaxChars     int
	SemanticEdgeCap   int
	SemanticEdgeMin   float64
	ReconcileInterval time.Duration

	// OnIndexed and OnRemoved fire per path after a reconcile pass commits,
	// outside the index lock. Either may be nil.
	OnIndexed func(path string)
	OnRemoved func(path string)
}

func (o Options) withDefaults() Options {
	if o.MinContentLength <= 0 {
		o.MinContentLength = 10
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 16
	}
	if o.EmbedConcurrency <= 0 {
		o.EmbedConcurrency = 4
	}
	if o.EmbedMaxChars <= 0 {
		o.EmbedMaxChars = 8000
	}
	if o.SemanticEdgeCap <= 0 {
		o.SemanticEdgeCap = 5
	}
	if o.SemanticEdgeMin <= 0 {
		o.SemanticEdgeMin = 0.75
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = 5 * time.Minute
	}
	return o
}

// Index holds the three derived sets behind one RWMutex. All mutation goes
// through BuildFull or Reconcile; readers get consistent copies.
type Index struct {
	files    storage.Provider
	embedder embedding.Service
	snaps    snapshot.Store // nil disables persistence
	logger   *slog.Logger
	opts     Options

	mu          sync.RWMutex
	documents   map[string]*Document
	embeddings  map[string]*Embedding
	connections []Connection

	lastBuild     time.Time
	lastReconcile time.Time

	building    atomic.Bool
	reconcileMu sync.Mutex
	reconcileCh chan struct{}
}

// New builds an empty index. snaps may be nil to run without persistence
// (tests do this).
func New(files storage.Provider, embedder embedding.Service, snaps snapshot.Store, logger *slog.Logger, opts Options) *Index {
	return &Index{
		files:       files,
		embedder:    embedder,
		snaps:       snaps,
		logger:      logger,
		opts:        opts.withDefaults(),
		documents:   make(map[string]*Document),
		embeddings:  make(map[string]*Embedding),
		reconcileCh: make(chan struct{}, 1),
	}
}

// Get returns a copy of the document at path.
func (ix *Index) Get(path string) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.documents[path]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// All returns a stable snapshot of every document, sorted by path.
func (ix *Index) All() []Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Document, 0, len(ix.documents))
	for _, doc := range ix.documents {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ConnectionsFor returns edges touching path. kind filters by edge kind
// (empty = all). direction applies to link edges only; tag and semantic
// edges are undirected and always match on either endpoint.
func (ix *Index) ConnectionsFor(path, kind, direction string) []Connection {
	if direction == "" {
		direction = DirBoth
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []Connection
	for _, c := range ix.connections {
		if kind != "" && c.Kind != kind {
			continue
		}
		if c.Kind == KindLink {
			switch direction {
			case DirOut:
				if c.From != path {
					continue
				}
			case DirIn:
				if c.To != path {
					continue
				}
			default:
				if c.From != path && c.To != path {
					continue
				}
			}
		} else if c.From != path && c.To != path {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Tags returns every tag in the collection with its document count.
func (ix *Index) Tags() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]int)
	for _, doc := range ix.documents {
		for _, t := range doc.Tags {
			out[t]++
		}
	}
	return out
}

// Stats reports collection counts and build timestamps.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	byKind := map[string]int{}
	for _, c := range ix.connections {
		byKind[c.Kind]++
	}
	return Stats{
		Documents:         len(ix.documents),
		Embeddings:        len(ix.embeddings),
		Connections:       len(ix.connections),
		ConnectionsByKind: byKind,
		Building:          ix.building.Load(),
		LastBuild:         ix.lastBuild,
		LastReconcile:     ix.lastReconcile,
	}
}

// eligible reports whether a path passes the include/exclude prefix filters.
// Extension filtering already happened in the file store's List.
func (ix *Index) eligible(path string) bool {
	for _, p := range ix.opts.ExcludePrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	if len(ix.opts.IncludePrefixes) == 0 {
		return true
	}
	for _, p := range ix.opts.IncludePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
