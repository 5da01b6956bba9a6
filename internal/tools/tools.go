// Package tools exposes the fixed set of read-only search operations a
// tool-calling model can invoke over the index.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/index"
)

// Tool is one named, schema-described query operation.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Result is the uniform tool response. Found always equals len(Results);
// pre-truncation counts go into Extra under their own key, never into Found.
type Result struct {
	Found   int
	Results []map[string]any
	Error   string
	Extra   map[string]any
}

// MarshalJSON flattens Extra into the top-level object next to found and
// results, matching the wire shape the model is prompted with.
func (r *Result) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		m[k] = v
	}
	m["found"] = r.Found
	if r.Results == nil {
		m["results"] = []map[string]any{}
	} else {
		m["results"] = r.Results
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return json.Marshal(m)
}

func notFound() *Result {
	return &Result{Found: 0, Error: "document not found"}
}

// Registry holds the eight tools keyed by name, in a stable catalog order.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry wires every tool to the index. clock supplies "now" for the
// date-based tools; nil means time.Now.
func NewRegistry(ix *index.Index, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		&semanticTool{ix: ix},
		&exactTextTool{ix: ix},
		&recentTool{ix: ix, clock: clock},
		&dateRangeTool{ix: ix, clock: clock},
		&patternsTool{ix: ix},
		&tagsTool{ix: ix},
		&linkedTool{ix: ix},
		&detailsTool{ix: ix},
	} {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// List returns the tools in catalog order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Execute dispatches one call. Unknown names are an error; the caller
// decides whether that is fatal (it never is for the agent loop).
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, args)
}

// objectSchema builds a JSON Schema object for a tool's parameters.
func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Argument readers. Tool arguments arrive as decoded JSON, so numbers are
// float64 and arrays are []any.

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func floatArg(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// stringsArg accepts a JSON array of strings or a comma-separated string.
func stringsArg(args map[string]any, key string) []string {
	var out []string
	switch v := args[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// hitResult converts a search hit into the uniform result entry.
func hitResult(h index.Hit) map[string]any {
	m := map[string]any{
		"path":        h.Path,
		"title":       h.Title,
		"match_type":  h.MatchType,
		"modified_at": h.ModifiedAt.Format(time.RFC3339),
	}
	if h.MatchType == index.MatchSemantic {
		m["similarity"] = h.Similarity
	} else {
		m["match_count"] = h.MatchCount
	}
	if h.Context != "" {
		m["context"] = h.Context
	}
	if len(h.Tags) > 0 {
		m["tags"] = h.Tags
	}
	return m
}

// docResult converts a document into the compact result entry used by the
// structural tools.
func docResult(d index.Document) map[string]any {
	m := map[string]any{
		"path":        d.Path,
		"title":       d.Title,
		"created_at":  d.CreatedAt.Format(time.RFC3339),
		"modified_at": d.ModifiedAt.Format(time.RFC3339),
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if snippet := firstChars(d.PlainText, 200); snippet != "" {
		m["snippet"] = snippet
	}
	return m
}

func firstChars(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
