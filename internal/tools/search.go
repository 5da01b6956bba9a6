package tools

import (
	"context"
	"fmt"

	"github.com/starford/ansuz/internal/index"
)

type semanticTool struct {
	ix *index.Index
}

func (t *semanticTool) Name() string { return "search_semantic" }

func (t *semanticTool) Description() string {
	return "Find documents related to a free-text query by meaning, not exact wording. " +
		"Best first choice for vague or conceptual questions."
}

func (t *semanticTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Free-text query to search for",
		},
		"top_k": map[string]any{
			"type":        "integer",
			"description": "Maximum number of results (default 10)",
		},
		"threshold": map[string]any{
			"type":        "number",
			"description": "Minimum similarity between 0 and 1 (default 0.3)",
		},
	}, "query")
}

func (t *semanticTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	query := stringArg(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("tools: search_semantic: query is required")
	}
	hits, err := t.ix.VectorSearch(ctx, query, intArg(args, "top_k", 10), floatArg(args, "threshold", 0.3))
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, hitResult(h))
	}
	return &Result{Found: len(results), Results: results}, nil
}

type exactTextTool struct {
	ix *index.Index
}

func (t *exactTextTool) Name() string { return "search_exact_text" }

func (t *exactTextTool) Description() string {
	return "Find documents containing an exact phrase or word. Use for names, codes, " +
		"identifiers, or when the precise wording is known."
}

func (t *exactTextTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Exact text to look for",
		},
		"case_sensitive": map[string]any{
			"type":        "boolean",
			"description": "Match case exactly (default false)",
		},
		"max_results": map[string]any{
			"type":        "integer",
			"description": "Maximum number of results (default 10)",
		},
	}, "query")
}

func (t *exactTextTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	query := stringArg(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("tools: search_exact_text: query is required")
	}
	hits := t.ix.SubstringSearch(query, boolArg(args, "case_sensitive", false), intArg(args, "max_results", 10))
	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, hitResult(h))
	}
	return &Result{Found: len(results), Results: results}, nil
}
