package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testServer(t *testing.T, docs map[string]string) *Server {
	t.Helper()

	dir, files := testutil.TestVault(t)
	for rel, content := range docs {
		testutil.WriteDoc(t, dir, rel, content)
	}
	ix := index.New(files, &testutil.FakeEmbedder{}, nil, testLogger(), index.Options{})
	if err := ix.BuildFull(context.Background()); err != nil {
		t.Fatalf("BuildFull: %v", err)
	}
	return New(tools.NewRegistry(ix, nil))
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := srv.handler(name)(context.Background(), req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

var testDocs = map[string]string{
	"notes/go.md":   "---\ntags: [go, work]\n---\nNotes about goroutines and channels plus the scheduler",
	"notes/trip.md": "---\ntags: [travel]\n---\nBooked the coast trip remember sunscreen uniquetoken",
}

func TestToolCatalogOverProtocol(t *testing.T) {
	srv := testServer(t, testDocs)
	ctx := context.Background()

	init := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0.0.0"}}}`
	if resp := srv.MCPServer().HandleMessage(ctx, []byte(init)); resp == nil {
		t.Fatal("no initialize response")
	}

	raw := srv.MCPServer().HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("tools/list error: %s", resp.Error.Message)
	}

	got := make(map[string]bool, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		got[tool.Name] = true
	}
	want := []string{
		"search_semantic", "search_exact_text", "get_recent_documents",
		"search_by_date_range", "extract_info_patterns", "search_by_tags",
		"get_linked_documents", "get_document_details",
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("tools/list missing %s", name)
		}
	}
	if len(got) != len(want) {
		t.Errorf("tools/list has %d tools, want %d", len(got), len(want))
	}
}

func TestExactTextTool(t *testing.T) {
	srv := testServer(t, testDocs)

	r := callTool(t, srv, "search_exact_text", map[string]any{"query": "uniquetoken"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"found": 1`) || !strings.Contains(text, "notes/trip.md") {
		t.Errorf("result = %s", text)
	}
}

func TestSemanticSearchTool(t *testing.T) {
	srv := testServer(t, testDocs)

	r := callTool(t, srv, "search_semantic", map[string]any{"query": "goroutines channels scheduler"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "notes/go.md") {
		t.Errorf("result = %s", text)
	}
}

func TestTagsTool_CommaSeparatedString(t *testing.T) {
	srv := testServer(t, testDocs)

	// MCP flattens the tags array to one comma-separated string parameter.
	r := callTool(t, srv, "search_by_tags", map[string]any{"tags": "go,work", "mode": "all"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, "notes/go.md") || strings.Contains(text, "notes/trip.md") {
		t.Errorf("result = %s", text)
	}
}

func TestRecentTool(t *testing.T) {
	srv := testServer(t, testDocs)

	r := callTool(t, srv, "get_recent_documents", map[string]any{"count": 5})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, `"found": 2`) {
		t.Errorf("result = %s", text)
	}
}

func TestDetailsTool_MissingDocument(t *testing.T) {
	srv := testServer(t, testDocs)

	// Tool-level misses ride inside the result, not as MCP errors.
	r := callTool(t, srv, "get_document_details", map[string]any{"path": "ghost.md"})
	if r.IsError {
		t.Fatalf("tool-level miss must not be an MCP error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "document not found") {
		t.Errorf("result = %s", text)
	}
}

func TestUnknownToolIsError(t *testing.T) {
	srv := testServer(t, testDocs)

	r := callTool(t, srv, "make_coffee", map[string]any{})
	if !r.IsError {
		t.Error("expected error result for unknown tool")
	}
	if text := resultText(r); !strings.Contains(text, "unknown tool") {
		t.Errorf("result = %s", text)
	}
}

func TestDocumentFormatResource(t *testing.T) {
	srv := testServer(t, testDocs)

	contents, err := srv.readDocumentFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T", contents[0])
	}
	if tc.MIMEType != "text/markdown" || !strings.Contains(tc.Text, "wikilinks") {
		t.Errorf("resource = %+v", tc)
	}
}
