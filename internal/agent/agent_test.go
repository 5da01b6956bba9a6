package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newOrchestrator builds a registry over a real built index and wires it to a
// scripted completion port.
func newOrchestrator(t *testing.T, docs map[string]string, script []llm.Response, opts Options) (*Orchestrator, *testutil.ScriptedCompleter) {
	t.Helper()
	dir, files := testutil.TestVault(t)
	for rel, content := range docs {
		testutil.WriteDoc(t, dir, rel, content)
	}
	ix := index.New(files, &testutil.FakeEmbedder{}, nil, testLogger(), index.Options{})
	if err := ix.BuildFull(context.Background()); err != nil {
		t.Fatalf("BuildFull: %v", err)
	}
	sc := &testutil.ScriptedCompleter{Script: script}
	return New(sc, tools.NewRegistry(ix, nil), testLogger(), opts), sc
}

var defaultDocs = map[string]string{
	"notes.md": "alpha beta gamma delta epsilon zeta eta theta iota kappa",
}

func TestAsk_TextMode_ToolThenAnswer(t *testing.T) {
	o, sc := newOrchestrator(t, defaultDocs, []llm.Response{
		{Text: `TOOL_CALL: get_recent_documents({"count": 5})`},
		{Text: "FINAL_ANSWER: It is in notes.md"},
	}, Options{ToolMode: ModeText})

	ans, err := o.Ask(context.Background(), "where did I write about alpha?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "It is in notes.md" {
		t.Errorf("text = %q", ans.Text)
	}
	if ans.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", ans.Iterations)
	}
	if len(ans.ToolTrace) != 1 {
		t.Fatalf("trace = %+v, want one call", ans.ToolTrace)
	}
	tc := ans.ToolTrace[0]
	if tc.Tool != "get_recent_documents" || tc.Found != 1 || tc.Error != "" {
		t.Errorf("trace[0] = %+v", tc)
	}

	// The second planning prompt must carry the merged evidence.
	if sc.RequestCount() != 2 {
		t.Fatalf("completions = %d, want 2", sc.RequestCount())
	}
	second := sc.Requests[1].Messages[0].Content
	if !strings.Contains(second, "get_recent_documents") || !strings.Contains(second, "notes.md") {
		t.Errorf("second prompt missing evidence:\n%s", second)
	}
}

func TestAsk_NativeMode(t *testing.T) {
	o, sc := newOrchestrator(t, defaultDocs, []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "get_recent_documents", Arguments: `{"count": 2}`}}},
		{Text: "The answer."},
	}, Options{ToolMode: ModeNative})

	ans, err := o.Ask(context.Background(), "anything recent?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "The answer." {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.ToolTrace) != 1 || ans.ToolTrace[0].Found != 1 {
		t.Errorf("trace = %+v", ans.ToolTrace)
	}
	if len(sc.Requests[0].Tools) != 8 {
		t.Errorf("schemas forwarded = %d, want the full catalog", len(sc.Requests[0].Tools))
	}
}

func TestAsk_UnknownToolContinues(t *testing.T) {
	o, _ := newOrchestrator(t, defaultDocs, []llm.Response{
		{Text: "TOOL_CALL: make_coffee({})"},
		{Text: "FINAL_ANSWER: no coffee here"},
	}, Options{ToolMode: ModeText})

	ans, err := o.Ask(context.Background(), "coffee?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "no coffee here" {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.ToolTrace) != 1 || !strings.Contains(ans.ToolTrace[0].Error, "unknown tool") {
		t.Errorf("trace = %+v, want a folded unknown-tool error", ans.ToolTrace)
	}
}

func TestAsk_InvalidNativeArgumentsFolded(t *testing.T) {
	o, _ := newOrchestrator(t, defaultDocs, []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search_by_tags", Arguments: `{bad json`}}},
		{Text: "done"},
	}, Options{ToolMode: ModeNative})

	ans, err := o.Ask(context.Background(), "tags?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "done" {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.ToolTrace) != 1 || !strings.Contains(ans.ToolTrace[0].Error, "invalid tool arguments") {
		t.Errorf("trace = %+v", ans.ToolTrace)
	}
}

func TestAsk_IterationCapForcesSynthesis(t *testing.T) {
	// The model never stops calling tools; the synthesis pass then returns
	// yet another tool call, so even the local fallback path must fire.
	o, sc := newOrchestrator(t, defaultDocs, []llm.Response{
		{Text: "TOOL_CALL: get_recent_documents({})"},
	}, Options{MaxIterations: 3, ToolMode: ModeText})

	ans, err := o.Ask(context.Background(), "never stops")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Iterations != 3 {
		t.Errorf("iterations = %d, want exactly the cap", ans.Iterations)
	}
	if strings.TrimSpace(ans.Text) == "" {
		t.Error("capped turn must still produce text")
	}
	if len(ans.ToolTrace) != 3 {
		t.Errorf("trace length = %d, want 3", len(ans.ToolTrace))
	}
	// Three planning rounds plus one synthesis pass.
	if sc.RequestCount() != 4 {
		t.Errorf("completions = %d, want 4", sc.RequestCount())
	}
}

func TestAsk_SemanticZeroTriggersOneLiteralRetry(t *testing.T) {
	o, sc := newOrchestrator(t, map[string]string{
		"noise.md": "entirely different vocabulary fills this other file",
	}, []llm.Response{
		{Text: `TOOL_CALL: search_semantic({"query": "zzz qqq xxx", "threshold": 0.95})`},
		{Text: "vocabulary"}, // the rewrite completion
		{Text: "FINAL_ANSWER: found it"},
	}, Options{ToolMode: ModeText})

	ans, err := o.Ask(context.Background(), "looking for the odd one")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "found it" {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.ToolTrace) != 2 {
		t.Fatalf("trace = %+v, want semantic then one exact retry", ans.ToolTrace)
	}
	if ans.ToolTrace[0].Tool != "search_semantic" || ans.ToolTrace[0].Found != 0 {
		t.Errorf("trace[0] = %+v", ans.ToolTrace[0])
	}
	if ans.ToolTrace[1].Tool != "search_exact_text" || ans.ToolTrace[1].Found != 1 {
		t.Errorf("trace[1] = %+v", ans.ToolTrace[1])
	}
	if sc.RequestCount() != 3 {
		t.Errorf("completions = %d, want planning + rewrite + planning", sc.RequestCount())
	}
}

// cancelingCompleter serves one scripted response, then cancels the turn.
type cancelingCompleter struct {
	inner  llm.Completer
	cancel context.CancelFunc
	calls  int
}

func (c *cancelingCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.calls++
	if c.calls > 1 {
		c.cancel()
		return nil, ctx.Err()
	}
	return c.inner.Complete(ctx, req)
}

func TestAsk_CancellationYieldsPartialAnswer(t *testing.T) {
	o, sc := newOrchestrator(t, defaultDocs, []llm.Response{
		{Text: "TOOL_CALL: get_recent_documents({})"},
	}, Options{ToolMode: ModeText})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.completer = &cancelingCompleter{inner: sc, cancel: cancel}

	ans, err := o.Ask(ctx, "interrupted question")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if strings.TrimSpace(ans.Text) == "" {
		t.Error("canceled turn must still carry text")
	}
	if len(ans.ToolTrace) != 1 {
		t.Errorf("trace = %+v, want the one call gathered before cancellation", ans.ToolTrace)
	}
}

type failingCompleter struct{ err error }

func (f failingCompleter) Complete(context.Context, llm.Request) (*llm.Response, error) {
	return nil, f.err
}

func TestAsk_PlanningFailureSurfaces(t *testing.T) {
	o, _ := newOrchestrator(t, defaultDocs, nil, Options{ToolMode: ModeText})
	o.completer = failingCompleter{err: errors.New("llm offline")}

	if _, err := o.Ask(context.Background(), "anything"); err == nil {
		t.Fatal("planning failure with an empty call log should surface as an error")
	}
}

func TestAskStream_EventSequence(t *testing.T) {
	o, _ := newOrchestrator(t, defaultDocs, []llm.Response{
		{Text: `TOOL_CALL: get_recent_documents({})`},
		{Text: "FINAL_ANSWER: done"},
	}, Options{ToolMode: ModeText})

	var events []Event
	for e := range o.AskStream(context.Background(), "stream it") {
		events = append(events, e)
	}

	want := []string{EventToolStart, EventToolResult, EventResponseStart, EventResponseChunk, EventResponseEnd}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, e.Type, want[i])
		}
		if e.TurnID == "" || e.TurnID != events[0].TurnID {
			t.Errorf("event[%d] turn id = %q, want one stable id", i, e.TurnID)
		}
	}
	last := events[len(events)-1]
	if last.Answer == nil || last.Answer.Text != "done" {
		t.Errorf("terminal event answer = %+v", last.Answer)
	}
	if events[3].Chunk != "done" {
		t.Errorf("chunk = %q, want the full answer text", events[3].Chunk)
	}
}
