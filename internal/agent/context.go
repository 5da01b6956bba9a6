package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/tools"
)

const truncatedMarker = "[truncated]"

// step is one entry in a turn's call log.
type step struct {
	tool   string
	args   map[string]any
	result *tools.Result
	err    string
}

// toolPriority ranks result groups when merging the call log into the next
// prompt. Ranking only reorders; nothing is dropped until the budget bites.
var toolPriority = map[string]float64{
	"search_semantic":       3.0,
	"get_document_details":  2.5,
	"search_exact_text":     2.0,
	"extract_info_patterns": 2.0,
	"get_linked_documents":  1.5,
	"search_by_tags":        1.5,
	"get_recent_documents":  1.0,
	"search_by_date_range":  1.0,
}

// scoreStep is the group priority: tool base plus the best similarity the
// group carries, so strong semantic hits outrank everything.
func scoreStep(s step) float64 {
	score := toolPriority[s.tool]
	if s.result == nil {
		return score
	}
	best := 0.0
	for _, r := range s.result.Results {
		if sim, ok := r["similarity"].(float64); ok && sim > best {
			best = sim
		}
	}
	return score + best
}

// mergeContext serializes the call log under a hard character budget.
// Groups are emitted in priority order and every piece is measured before it
// is appended; the first piece that would overflow stops the merge and the
// truncation marker is written in the space reserved for it.
func mergeContext(steps []step, budget int) string {
	ranked := make([]step, len(steps))
	copy(ranked, steps)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scoreStep(ranked[i]) > scoreStep(ranked[j])
	})

	limit := budget - len(truncatedMarker)
	if limit < 0 {
		limit = 0
	}

	var b strings.Builder
	truncated := false
rank:
	for _, s := range ranked {
		for _, piece := range renderStep(s) {
			if b.Len()+len(piece) > limit {
				truncated = true
				break rank
			}
			b.WriteString(piece)
		}
	}
	if truncated && budget >= len(truncatedMarker) {
		b.WriteString(truncatedMarker)
	}
	return b.String()
}

// renderStep flattens one call-log entry into appendable pieces: a header
// line, then one line per result, so truncation can cut inside a group.
func renderStep(s step) []string {
	if s.err != "" {
		return []string{fmt.Sprintf("## %s%s -> error: %s\n\n", s.tool, compactArgs(s.args), s.err)}
	}
	pieces := make([]string, 0, len(s.result.Results)+2)
	pieces = append(pieces, fmt.Sprintf("## %s%s -> %d found\n", s.tool, compactArgs(s.args), s.result.Found))
	if s.result.Error != "" {
		pieces = append(pieces, "- "+s.result.Error+"\n")
	}
	for _, r := range s.result.Results {
		line, err := json.Marshal(r)
		if err != nil {
			continue
		}
		pieces = append(pieces, "- "+string(line)+"\n")
	}
	pieces = append(pieces, "\n")
	return pieces
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return "()"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "()"
	}
	return "(" + string(data) + ")"
}
