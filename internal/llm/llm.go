// Package llm defines the model-completion port used by the agent loop.
package llm

import (
	"context"
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema for the arguments object
}

// ToolCall is a structured tool invocation returned by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object
}

// Request is one completion call.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSchema // empty when tool calling is not wanted
	// OnChunk, when non-nil, receives incremental text as the model
	// produces it. The full text is still returned in the Response.
	OnChunk func(chunk string)
}

// Response is the model's reply: free text, tool calls, or both.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Completer is the completion port. Implementations must honour context
// cancellation; completion calls dominate the latency of an agent turn.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Disabled is a Completer with no backend. Ask operations fail fast with
// apperr.ErrUnavailable while search and the rest of the server keep working.
type Disabled struct{}

func (Disabled) Complete(context.Context, Request) (*Response, error) {
	return nil, fmt.Errorf("llm: not configured: %w", apperr.ErrUnavailable)
}
