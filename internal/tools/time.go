package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/datemath"
	"github.com/starford/ansuz/internal/index"
)

func axisTime(d index.Document, axis string) time.Time {
	if axis == "created" {
		return d.CreatedAt
	}
	return d.ModifiedAt
}

// matchesFilter checks title, tags, and plain text, case-insensitively.
func matchesFilter(d index.Document, filter string) bool {
	if strings.Contains(strings.ToLower(d.Title), filter) {
		return true
	}
	for _, tag := range d.Tags {
		if strings.Contains(strings.ToLower(tag), filter) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(d.PlainText), filter)
}

type recentTool struct {
	ix    *index.Index
	clock func() time.Time
}

func (t *recentTool) Name() string { return "get_recent_documents" }

func (t *recentTool) Description() string {
	return "List the most recently modified or created documents, optionally filtered " +
		"by a content keyword and a days-back window."
}

func (t *recentTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"count": map[string]any{
			"type":        "integer",
			"description": "Maximum number of documents (default 10)",
		},
		"content_filter": map[string]any{
			"type":        "string",
			"description": "Keep only documents whose title, tags, or text contain this keyword",
		},
		"axis": map[string]any{
			"type":        "string",
			"description": "Timestamp to sort by: modified or created (default modified)",
		},
		"days_back": map[string]any{
			"type":        "integer",
			"description": "Only documents touched within the last N days (default unbounded)",
		},
	})
}

func (t *recentTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	count := intArg(args, "count", 10)
	filter := strings.ToLower(stringArg(args, "content_filter", ""))
	axis := stringArg(args, "axis", "modified")
	daysBack := intArg(args, "days_back", 0)

	var cutoff time.Time
	if daysBack > 0 {
		cutoff = t.clock().AddDate(0, 0, -daysBack)
	}

	var matched []index.Document
	for _, d := range t.ix.All() {
		if !cutoff.IsZero() && axisTime(d, axis).Before(cutoff) {
			continue
		}
		if filter != "" && !matchesFilter(d, filter) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		ti, tj := axisTime(matched[i], axis), axisTime(matched[j], axis)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matched[i].Path < matched[j].Path
	})

	total := len(matched)
	if len(matched) > count {
		matched = matched[:count]
	}
	results := make([]map[string]any, 0, len(matched))
	for _, d := range matched {
		results = append(results, docResult(d))
	}
	res := &Result{Found: len(results), Results: results}
	if total > len(results) {
		res.Extra = map[string]any{"total_matches": total}
	}
	return res, nil
}

type dateRangeTool struct {
	ix    *index.Index
	clock func() time.Time
}

func (t *dateRangeTool) Name() string { return "search_by_date_range" }

func (t *dateRangeTool) Description() string {
	return "Find documents created or modified within a date range. Accepts ISO dates " +
		"and relative expressions like 'today', 'yesterday', or '2 weeks ago'."
}

func (t *dateRangeTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"start": map[string]any{
			"type":        "string",
			"description": "Range start: ISO date or relative expression",
		},
		"end": map[string]any{
			"type":        "string",
			"description": "Range end, inclusive (default today)",
		},
		"axis": map[string]any{
			"type":        "string",
			"description": "Timestamp to filter on: modified or created (default modified)",
		},
		"sort": map[string]any{
			"type":        "string",
			"description": "Order of results: desc or asc (default desc)",
		},
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum number of results (default 50)",
		},
	}, "start")
}

func (t *dateRangeTool) Execute(_ context.Context, args map[string]any) (*Result, error) {
	startExpr := stringArg(args, "start", "")
	if startExpr == "" {
		return nil, fmt.Errorf("tools: search_by_date_range: start is required")
	}
	now := t.clock()
	fromDay, err := datemath.Resolve(startExpr, now)
	if err != nil {
		return nil, fmt.Errorf("tools: search_by_date_range: start: %w", err)
	}
	toDay, err := datemath.Resolve(stringArg(args, "end", "today"), now)
	if err != nil {
		return nil, fmt.Errorf("tools: search_by_date_range: end: %w", err)
	}
	if toDay.Before(fromDay) {
		fromDay, toDay = toDay, fromDay
	}
	from, to := fromDay, datemath.EndOfDay(toDay)

	axis := stringArg(args, "axis", "modified")
	order := stringArg(args, "sort", "desc")
	limit := intArg(args, "limit", 50)

	var matched []index.Document
	for _, d := range t.ix.All() {
		ts := axisTime(d, axis)
		if ts.Before(from) || ts.After(to) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		ti, tj := axisTime(matched[i], axis), axisTime(matched[j], axis)
		if !ti.Equal(tj) {
			if order == "asc" {
				return ti.Before(tj)
			}
			return ti.After(tj)
		}
		return matched[i].Path < matched[j].Path
	})

	total := len(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	results := make([]map[string]any, 0, len(matched))
	for _, d := range matched {
		results = append(results, docResult(d))
	}
	res := &Result{Found: len(results), Results: results}
	extra := map[string]any{
		"range_start": from.Format(time.RFC3339),
		"range_end":   to.Format(time.RFC3339),
	}
	if total > len(results) {
		extra["total_matches"] = total
	}
	res.Extra = extra
	return res, nil
}
