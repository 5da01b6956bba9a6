package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/index"
)

type tagsTool struct {
	ix *index.Index
}

func (t *tagsTool) Name() string { return "search_by_tags" }

func (t *tagsTool) Description() string {
	return "Find documents carrying specific tags. mode=any matches documents with at " +
		"least one of the tags, mode=all requires every tag."
}

func (t *tagsTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"tags": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Tags to look for, without the # prefix",
		},
		"mode": map[string]any{
			"type":        "string",
			"description": "Match mode: any or all (default any)",
		},
	}, "tags")
}

func (t *tagsTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	want := stringsArg(args, "tags")
	if len(want) == 0 {
		return nil, fmt.Errorf("tools: search_by_tags: tags is required")
	}
	for i, tag := range want {
		want[i] = strings.ToLower(strings.TrimPrefix(tag, "#"))
	}
	requireAll := stringArg(args, "mode", "any") == "all"

	var results []map[string]any
	for _, d := range t.ix.All() {
		have := make(map[string]bool, len(d.Tags))
		for _, tag := range d.Tags {
			have[strings.ToLower(tag)] = true
		}

		var matched []string
		for _, tag := range want {
			if have[tag] {
				matched = append(matched, tag)
			}
		}
		if len(matched) == 0 || (requireAll && len(matched) < len(want)) {
			continue
		}
		entry := docResult(d)
		entry["matched_tags"] = matched
		results = append(results, entry)
	}
	return &Result{Found: len(results), Results: results}, nil
}

type linkedTool struct {
	ix *index.Index
}

func (t *linkedTool) Name() string { return "get_linked_documents" }

func (t *linkedTool) Description() string {
	return "List documents connected to a given document by wikilinks, in either or " +
		"both directions."
}

func (t *linkedTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Path of the document to inspect",
		},
		"direction": map[string]any{
			"type":        "string",
			"description": "Link direction: in, out, or both (default both)",
		},
	}, "path")
}

func (t *linkedTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	path := stringArg(args, "path", "")
	if path == "" {
		return nil, fmt.Errorf("tools: get_linked_documents: path is required")
	}
	if _, ok := t.ix.Get(path); !ok {
		return notFound(), nil
	}
	direction := stringArg(args, "direction", index.DirBoth)

	edges := t.ix.ConnectionsFor(path, index.KindLink, direction)
	results := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		other, dir := e.To, "out"
		if e.To == path {
			other, dir = e.From, "in"
		}
		entry := map[string]any{"path": other, "direction": dir}
		if doc, ok := t.ix.Get(other); ok {
			entry["title"] = doc.Title
		}
		results = append(results, entry)
	}
	return &Result{Found: len(results), Results: results}, nil
}

type detailsTool struct {
	ix *index.Index
}

func (t *detailsTool) Name() string { return "get_document_details" }

func (t *detailsTool) Description() string {
	return "Return one document in full: content, tags, links in both directions, and " +
		"a summary of its connections."
}

func (t *detailsTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Path of the document to fetch",
		},
	}, "path")
}

func (t *detailsTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	path := stringArg(args, "path", "")
	if path == "" {
		return nil, fmt.Errorf("tools: get_document_details: path is required")
	}
	doc, ok := t.ix.Get(path)
	if !ok {
		return notFound(), nil
	}

	byKind := map[string]int{}
	for _, c := range t.ix.ConnectionsFor(path, "", index.DirBoth) {
		byKind[c.Kind]++
	}

	entry := docResult(doc)
	entry["content"] = doc.Content
	entry["links"] = doc.Links
	entry["backlinks"] = doc.Backlinks
	entry["size"] = doc.Size
	delete(entry, "snippet")

	return &Result{
		Found:   1,
		Results: []map[string]any{entry},
		Extra:   map[string]any{"connections": byKind},
	}, nil
}
