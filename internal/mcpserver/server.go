// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the index's search tools via stdio transport, so external MCP
// clients drive the same tool set the internal agent uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/tools"
)

// Server wraps the MCP server with the registry's tools.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
}

// New creates an MCP server with every registry tool registered.
func New(registry *tools.Registry) *Server {
	s := &Server{registry: registry}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	for _, t := range registry.List() {
		s.mcp.AddTool(mcpTool(t), s.handler(t.Name()))
	}

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://document-format", "Document Format",
			mcp.WithResourceDescription("Markdown conventions the indexer extracts: frontmatter, tags, wikilinks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// handler adapts one registry tool to the MCP call signature. Registry-level
// failures (unknown tool, bad arguments) become MCP error results; anything
// the tool itself reports rides inside the result JSON.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.registry.Execute(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// mcpTool translates a tool's JSON schema into an MCP tool declaration.
// Array parameters flatten to comma-separated strings, which every tool's
// argument reader accepts.
func mcpTool(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description())}

	schema := t.InputSchema()
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	if names, ok := schema["required"].([]string); ok {
		for _, n := range names {
			required[n] = true
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		typ, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		if typ == "array" {
			desc = strings.TrimSuffix(desc, ".") + " (comma-separated)"
		}
		popts := []mcp.PropertyOption{mcp.Description(desc)}
		if required[name] {
			popts = append(popts, mcp.Required())
		}
		switch typ {
		case "integer", "number":
			opts = append(opts, mcp.WithNumber(name, popts...))
		case "boolean":
			opts = append(opts, mcp.WithBoolean(name, popts...))
		default:
			opts = append(opts, mcp.WithString(name, popts...))
		}
	}
	return mcp.NewTool(t.Name(), opts...)
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
