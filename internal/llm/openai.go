package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/starford/ansuz/internal/apperr"
)

// Config configures the OpenAI-compatible chat client. BaseURL may point at
// any server that speaks the OpenAI chat completions API.
type Config struct {
	BaseURL     string
	Model       string
	APIKeyEnv   string
	Temperature float64
	MaxTokens   int
}

// Chat is a Completer backed by an OpenAI-compatible endpoint.
type Chat struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

// NewChat builds the client. The API key is read from cfg.APIKeyEnv; a
// missing key is reported as apperr.ErrUnavailable so callers can start
// without one and degrade.
func NewChat(cfg Config) (*Chat, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("llm: new chat: %s not set: %w", cfg.APIKeyEnv, apperr.ErrUnavailable)
	}

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: new chat: %w", err)
	}

	return &Chat{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends one completion request and collects the reply.
func (c *Chat) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{
		llms.WithTemperature(c.temperature),
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]llms.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
	}
	if req.OnChunk != nil {
		onChunk := req.OnChunk
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) > 0 {
				onChunk(string(chunk))
			}
			return nil
		}))
	}

	resp, err := c.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: complete: empty response")
	}

	choice := resp.Choices[0]
	out := &Response{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	return out, nil
}
