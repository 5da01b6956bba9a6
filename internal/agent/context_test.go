package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/tools"
)

// resultStep fabricates a call-log entry with n results carrying long paths,
// so a handful of steps can outgrow any small budget.
func resultStep(tool string, n int, sim float64) step {
	results := make([]map[string]any, n)
	for i := range results {
		r := map[string]any{"path": fmt.Sprintf("%s/document-%02d.md", tool, i)}
		if sim > 0 {
			r["similarity"] = sim
		}
		results[i] = r
	}
	return step{
		tool:   tool,
		args:   map[string]any{"query": "anything"},
		result: &tools.Result{Found: n, Results: results},
	}
}

func TestMergeContext_NeverExceedsBudget(t *testing.T) {
	steps := []step{
		resultStep("search_semantic", 20, 0.9),
		resultStep("get_recent_documents", 20, 0),
	}
	for _, budget := range []int{40, 200, 1000} {
		merged := mergeContext(steps, budget)
		if len(merged) > budget {
			t.Errorf("budget %d: merged %d chars", budget, len(merged))
		}
		if !strings.Contains(merged, truncatedMarker) {
			t.Errorf("budget %d: dropped results but no %q marker", budget, truncatedMarker)
		}
	}
}

func TestMergeContext_NoMarkerWhenEverythingFits(t *testing.T) {
	steps := []step{
		resultStep("search_semantic", 2, 0.9),
		resultStep("get_recent_documents", 2, 0),
	}
	merged := mergeContext(steps, 100000)
	if strings.Contains(merged, truncatedMarker) {
		t.Error("nothing was dropped yet the marker is present")
	}
	if !strings.Contains(merged, "search_semantic") || !strings.Contains(merged, "get_recent_documents") {
		t.Errorf("merged context missing a tool group:\n%s", merged)
	}
}

func TestMergeContext_HigherPriorityFirst(t *testing.T) {
	// The recent group was gathered first but semantic outranks it.
	steps := []step{
		resultStep("get_recent_documents", 2, 0),
		resultStep("search_semantic", 2, 0.9),
	}
	merged := mergeContext(steps, 100000)
	sem := strings.Index(merged, "search_semantic")
	rec := strings.Index(merged, "get_recent_documents")
	if sem < 0 || rec < 0 || sem > rec {
		t.Errorf("semantic group should precede recent group:\n%s", merged)
	}
}

func TestMergeContext_RendersErrorSteps(t *testing.T) {
	steps := []step{{tool: "make_coffee", err: "unknown tool"}}
	merged := mergeContext(steps, 100000)
	if !strings.Contains(merged, "make_coffee") || !strings.Contains(merged, "error: unknown tool") {
		t.Errorf("error step not rendered:\n%s", merged)
	}
}

func TestScoreStep_SimilarityBoost(t *testing.T) {
	weak := resultStep("search_semantic", 1, 0.1)
	strong := resultStep("search_semantic", 1, 0.95)
	details := resultStep("get_document_details", 1, 0)
	if scoreStep(strong) <= scoreStep(weak) {
		t.Error("higher similarity should score higher")
	}
	if scoreStep(details) >= scoreStep(weak) {
		t.Error("semantic base priority should outrank details")
	}
	unknown := step{tool: "mystery", result: &tools.Result{}}
	if scoreStep(unknown) != 0 {
		t.Errorf("unknown tool score = %v, want 0", scoreStep(unknown))
	}
}
