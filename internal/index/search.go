package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/apperr"
)

// Match types carried on a Hit.
const (
	MatchSemantic  = "semantic"
	MatchSubstring = "substring"
)

const (
	maxWindowsPerDoc = 3
	contextRadius    = 120
	snippetMax       = 300
)

// Hit is one search result from either retrieval primitive.
type Hit struct {
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	MatchType  string    `json:"match_type"`
	Similarity float64   `json:"similarity,omitempty"`
	MatchCount int       `json:"match_count,omitempty"`
	Context    string    `json:"context,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// VectorSearch embeds the query and scores every stored vector by cosine
// similarity, returning at most topK hits with similarity >= minSim, best
// first. When the embedding service is unavailable the call degrades to a
// substring search; hits carry their match type but callers need not branch.
func (ix *Index) VectorSearch(ctx context.Context, query string, topK int, minSim float64) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	if !ix.embedder.Available(ctx) {
		ix.logger.Debug("index: vector search degraded to substring")
		return ix.SubstringSearch(query, false, topK), nil
	}

	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if errors.Is(err, apperr.ErrUnavailable) {
			ix.logger.Debug("index: vector search degraded to substring")
			return ix.SubstringSearch(query, false, topK), nil
		}
		return nil, fmt.Errorf("index: vector search: %w", err)
	}

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.embeddings))
	for _, e := range ix.embeddings {
		sim := cosine(vec, e.Vector)
		if sim < minSim {
			continue
		}
		title := e.Path
		if doc, ok := ix.documents[e.Path]; ok {
			title = doc.Title
		}
		hits = append(hits, Hit{
			Path:       e.Path,
			Title:      title,
			MatchType:  MatchSemantic,
			Similarity: sim,
			Context:    truncate(e.Snapshot, snippetMax),
			Tags:       e.Tags,
			ModifiedAt: e.ModifiedAt,
		})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// SubstringSearch scans plain text (and titles) for the query, at most
// maxWindowsPerDoc context windows per document, ranked by match count then
// recency. caseSensitive toggles exact-case matching.
func (ix *Index) SubstringSearch(query string, caseSensitive bool, maxResults int) []Hit {
	if maxResults <= 0 {
		maxResults = 10
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	pattern := regexp.QuoteMeta(query)
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}

	ix.mu.RLock()
	var hits []Hit
	for _, doc := range ix.documents {
		locs := re.FindAllStringIndex(doc.PlainText, -1)
		count := len(locs)
		if re.MatchString(doc.Title) {
			count++
		}
		if count == 0 {
			continue
		}

		var windows []string
		for i, loc := range locs {
			if i == maxWindowsPerDoc {
				break
			}
			windows = append(windows, window(doc.PlainText, loc[0], loc[1]))
		}
		hits = append(hits, Hit{
			Path:       doc.Path,
			Title:      doc.Title,
			MatchType:  MatchSubstring,
			MatchCount: count,
			Context:    strings.Join(windows, " … "),
			Tags:       doc.Tags,
			ModifiedAt: doc.ModifiedAt,
		})
	}
	ix.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].MatchCount != hits[j].MatchCount {
			return hits[i].MatchCount > hits[j].MatchCount
		}
		if !hits[i].ModifiedAt.Equal(hits[j].ModifiedAt) {
			return hits[i].ModifiedAt.After(hits[j].ModifiedAt)
		}
		return hits[i].Path < hits[j].Path
	})
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits
}

// window extracts a bounded stretch of text around [start,end), clipped to
// rune boundaries.
func window(s string, start, end int) string {
	lo := start - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRadius
	if hi > len(s) {
		hi = len(s)
	}
	for lo > 0 && !utf8.RuneStart(s[lo]) {
		lo--
	}
	for hi < len(s) && !utf8.RuneStart(s[hi]) {
		hi++
	}
	out := strings.TrimSpace(s[lo:hi])
	if lo > 0 {
		out = "…" + out
	}
	if hi < len(s) {
		out += "…"
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
