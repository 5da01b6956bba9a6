// Package embedding generates text embeddings for the document index.
package embedding

import (
	"context"
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
)

// Service converts text into fixed-length vectors. Implementations wrap a
// remote embedding API; errors caused by the backend being unreachable or
// unconfigured wrap apperr.ErrUnavailable so callers can degrade to
// substring search instead of failing.
type Service interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds a batch of document texts, one vector per input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Available reports whether the backend is currently usable.
	Available(ctx context.Context) bool
}

// Disabled is a Service with no backend. It stands in when no embedding
// provider is configured; the index then serves substring search only.
type Disabled struct{}

func (Disabled) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding: not configured: %w", apperr.ErrUnavailable)
}

func (Disabled) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding: not configured: %w", apperr.ErrUnavailable)
}

func (Disabled) Available(context.Context) bool { return false }
