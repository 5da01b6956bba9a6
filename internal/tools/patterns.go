package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/index"
)

const (
	maxMatchesPerDoc   = 5
	maxMatchesPerQuery = 50
)

// infoPatterns are the built-in extraction presets. Keys double as the
// accepted info_type values.
var infoPatterns = map[string]*regexp.Regexp{
	"vin":     regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`),
	"phone":   regexp.MustCompile(`\+?\d[\d\s().-]{6,18}\d`),
	"email":   regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
	"address": regexp.MustCompile(`(?i)\b\d{1,5}\s+\w+(?:\s+\w+){0,3}\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl)\b`),
	"url":     regexp.MustCompile(`https?://[^\s<>"')\]]+`),
	"number":  regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`),
	"date":    regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}[./]\d{1,2}[./]\d{2,4}\b`),
}

func patternNames() []string {
	names := make([]string, 0, len(infoPatterns))
	for name := range infoPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type patternsTool struct {
	ix *index.Index
}

func (t *patternsTool) Name() string { return "extract_info_patterns" }

func (t *patternsTool) Description() string {
	return "Extract structured values (" + strings.Join(patternNames(), ", ") + ") or a " +
		"custom regular expression from all documents, each with surrounding context."
}

func (t *patternsTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"info_type": map[string]any{
			"type":        "string",
			"description": "Built-in pattern to extract: " + strings.Join(patternNames(), ", "),
		},
		"custom_pattern": map[string]any{
			"type":        "string",
			"description": "Custom regular expression, used instead of info_type",
		},
		"context_words": map[string]any{
			"type":        "integer",
			"description": "Words of context on each side of a match (default 5)",
		},
	})
}

func (t *patternsTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	var re *regexp.Regexp
	if custom := stringArg(args, "custom_pattern", ""); custom != "" {
		var err error
		if re, err = regexp.Compile(custom); err != nil {
			return nil, fmt.Errorf("tools: extract_info_patterns: bad custom_pattern: %w", err)
		}
	} else {
		infoType := stringArg(args, "info_type", "")
		var ok bool
		if re, ok = infoPatterns[infoType]; !ok {
			return nil, fmt.Errorf("tools: extract_info_patterns: unknown info_type %q (want one of %s, or custom_pattern)",
				infoType, strings.Join(patternNames(), ", "))
		}
	}
	contextWords := intArg(args, "context_words", 5)

	var results []map[string]any
	truncated := false

scan:
	for _, d := range t.ix.All() {
		locs := re.FindAllStringIndex(d.PlainText, maxMatchesPerDoc)
		for _, loc := range locs {
			if len(results) == maxMatchesPerQuery {
				truncated = true
				break scan
			}
			results = append(results, map[string]any{
				"path":    d.Path,
				"title":   d.Title,
				"match":   d.PlainText[loc[0]:loc[1]],
				"context": wordWindow(d.PlainText, loc[0], loc[1], contextWords),
			})
		}
	}

	res := &Result{Found: len(results), Results: results}
	if truncated {
		res.Extra = map[string]any{"truncated": true}
	}
	return res, nil
}

// wordWindow returns the match plus up to n words on each side.
func wordWindow(s string, lo, hi, n int) string {
	before := strings.Fields(s[:lo])
	if len(before) > n {
		before = before[len(before)-n:]
	}
	after := strings.Fields(s[hi:])
	if len(after) > n {
		after = after[:n]
	}

	parts := make([]string, 0, len(before)+len(after)+1)
	parts = append(parts, before...)
	parts = append(parts, s[lo:hi])
	parts = append(parts, after...)
	return strings.Join(parts, " ")
}
