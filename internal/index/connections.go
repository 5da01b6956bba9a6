package index

import (
	"path"
	"sort"
	"strings"
)

// buildResolver maps lowercase link targets to canonical document paths.
// A target resolves by full path, path without extension, base name, or
// title. Colliding keys keep the lexicographically smallest path so
// resolution is deterministic.
func buildResolver(docs map[string]*Document) map[string]string {
	r := make(map[string]string, len(docs)*3)
	add := func(key, p string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		if cur, ok := r[key]; ok && cur <= p {
			return
		}
		r[key] = p
	}
	for p, doc := range docs {
		noExt := strings.TrimSuffix(p, path.Ext(p))
		add(p, p)
		add(noExt, p)
		add(path.Base(noExt), p)
		add(doc.Title, p)
	}
	return r
}

func resolveTarget(r map[string]string, target string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(target))
	if p, ok := r[key]; ok {
		return p, true
	}
	if p, ok := r[strings.TrimSuffix(key, ".md")]; ok {
		return p, true
	}
	return "", false
}

// linkEdges returns the resolved outbound link edges of one document,
// deduplicated by target. Unresolved targets produce no edge.
func linkEdges(doc *Document, resolver map[string]string) []Connection {
	var out []Connection
	seen := make(map[string]struct{}, len(doc.Links))
	for _, target := range doc.Links {
		to, ok := resolveTarget(resolver, target)
		if !ok || to == doc.Path {
			continue
		}
		if _, dup := seen[to]; dup {
			continue
		}
		seen[to] = struct{}{}
		out = append(out, Connection{From: doc.Path, To: to, Kind: KindLink, Strength: 1.0})
	}
	return out
}

// tagEdges connects document pairs sharing at least one tag, strength
// |shared| / max(|tagsA|, |tagsB|). touched == nil means all pairs;
// otherwise only pairs with at least one touched endpoint.
func tagEdges(docs map[string]*Document, touched map[string]struct{}) []Connection {
	byTag := make(map[string][]string)
	for p, d := range docs {
		for _, t := range d.Tags {
			byTag[t] = append(byTag[t], p)
		}
	}

	type pair struct{ a, b string }
	shared := make(map[pair]int)
	for _, paths := range byTag {
		sort.Strings(paths)
		for i := 0; i < len(paths); i++ {
			for j := i + 1; j < len(paths); j++ {
				a, b := paths[i], paths[j]
				if touched != nil {
					_, ta := touched[a]
					_, tb := touched[b]
					if !ta && !tb {
						continue
					}
				}
				shared[pair{a, b}]++
			}
		}
	}

	out := make([]Connection, 0, len(shared))
	for pr, n := range shared {
		den := max(len(docs[pr.a].Tags), len(docs[pr.b].Tags))
		if den == 0 {
			continue
		}
		out = append(out, Connection{
			From:     pr.a,
			To:       pr.b,
			Kind:     KindTag,
			Strength: float64(n) / float64(den),
		})
	}
	return out
}

// semanticEdgesLocked links each source document to its top neighbours by
// cosine similarity. Callers hold the write lock. touched == nil scores
// every embedded document as a source.
func (ix *Index) semanticEdgesLocked(touched map[string]struct{}) []Connection {
	var sources []string
	if touched == nil {
		for p := range ix.embeddings {
			sources = append(sources, p)
		}
	} else {
		for p := range touched {
			if _, ok := ix.embeddings[p]; ok {
				sources = append(sources, p)
			}
		}
	}
	sort.Strings(sources)

	type pair struct{ a, b string }
	seen := make(map[pair]float64)
	for _, src := range sources {
		a := ix.embeddings[src]

		type scored struct {
			path string
			sim  float64
		}
		var best []scored
		for p, b := range ix.embeddings {
			if p == src {
				continue
			}
			sim := cosine(a.Vector, b.Vector)
			if sim < ix.opts.SemanticEdgeMin {
				continue
			}
			best = append(best, scored{p, sim})
		}
		sort.Slice(best, func(i, j int) bool {
			if best[i].sim != best[j].sim {
				return best[i].sim > best[j].sim
			}
			return best[i].path < best[j].path
		})
		if len(best) > ix.opts.SemanticEdgeCap {
			best = best[:ix.opts.SemanticEdgeCap]
		}
		for _, s := range best {
			pr := pair{src, s.path}
			if pr.b < pr.a {
				pr.a, pr.b = pr.b, pr.a
			}
			if _, ok := seen[pr]; !ok {
				seen[pr] = s.sim
			}
		}
	}

	out := make([]Connection, 0, len(seen))
	for pr, sim := range seen {
		out = append(out, Connection{From: pr.a, To: pr.b, Kind: KindSemantic, Strength: sim})
	}
	return out
}

// rebuildConnectionsLocked recomputes the whole graph. Callers hold the
// write lock.
func (ix *Index) rebuildConnectionsLocked() {
	ix.connections = nil
	resolver := buildResolver(ix.documents)
	for _, doc := range ix.documents {
		ix.connections = append(ix.connections, linkEdges(doc, resolver)...)
	}
	ix.connections = append(ix.connections, tagEdges(ix.documents, nil)...)
	ix.connections = append(ix.connections, ix.semanticEdgesLocked(nil)...)
	ix.rebuildBacklinksLocked()
}

// recomputeConnectionsLocked drops every edge incident to a touched path and
// rebuilds edges for the touched set only. Link edges from untouched
// documents into touched ones are re-resolved too, since adding or removing
// a document changes what its inbound wikilinks resolve to.
func (ix *Index) recomputeConnectionsLocked(touched map[string]struct{}) {
	kept := ix.connections[:0]
	for _, c := range ix.connections {
		if _, ok := touched[c.From]; ok {
			continue
		}
		if _, ok := touched[c.To]; ok {
			continue
		}
		kept = append(kept, c)
	}
	ix.connections = kept

	resolver := buildResolver(ix.documents)
	for p := range touched {
		doc, ok := ix.documents[p]
		if !ok {
			continue // removed
		}
		ix.connections = append(ix.connections, linkEdges(doc, resolver)...)
	}
	for p, doc := range ix.documents {
		if _, ok := touched[p]; ok {
			continue
		}
		for _, c := range linkEdges(doc, resolver) {
			if _, ok := touched[c.To]; ok {
				ix.connections = append(ix.connections, c)
			}
		}
	}
	ix.connections = append(ix.connections, tagEdges(ix.documents, touched)...)
	ix.connections = append(ix.connections, ix.semanticEdgesLocked(touched)...)
	ix.rebuildBacklinksLocked()
}

// rebuildBacklinksLocked derives every document's inbound list from the
// current link edges. Callers hold the write lock.
func (ix *Index) rebuildBacklinksLocked() {
	inbound := make(map[string][]string)
	for _, c := range ix.connections {
		if c.Kind != KindLink {
			continue
		}
		inbound[c.To] = append(inbound[c.To], c.From)
	}
	for p, doc := range ix.documents {
		links := inbound[p]
		sort.Strings(links)
		doc.Backlinks = links
	}
}
