package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/starford/ansuz/internal/apperr"
)

// unavailableCooldown is how long a connection-level failure marks the
// backend as down before the next attempt is allowed to probe it again.
const unavailableCooldown = 30 * time.Second

// Config configures the OpenAI-compatible embedding client.
type Config struct {
	BaseURL   string
	Model     string
	APIKeyEnv string
}

// Client implements Service on top of an OpenAI-compatible embeddings API
// (OpenAI itself, or any server speaking the same protocol) via langchaingo.
type Client struct {
	embedder *embeddings.EmbedderImpl

	mu       sync.Mutex
	downTill time.Time
}

// NewClient builds the embeddings client. A missing API key is reported as
// apperr.ErrUnavailable, not a hard failure, so the caller can run in
// substring-only mode.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("embedding: no API key in env %s: %w", cfg.APIKeyEnv, apperr.ErrUnavailable)
	}

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("embedding: create client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedding: create embedder: %w", err)
	}
	return &Client{embedder: embedder}, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := c.checkDown(); err != nil {
		return nil, err
	}
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, c.classify("embed query", err)
	}
	return vec, nil
}

// EmbedBatch embeds a batch of texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.checkDown(); err != nil {
		return nil, err
	}
	vecs, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, c.classify("embed batch", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// Available reports whether the backend is usable right now.
func (c *Client) Available(_ context.Context) bool {
	return c.checkDown() == nil
}

func (c *Client) checkDown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.downTill) {
		return fmt.Errorf("embedding: backend marked down: %w", apperr.ErrUnavailable)
	}
	return nil
}

// classify separates backend-unreachable failures (wrapped as
// apperr.ErrUnavailable, with a cooldown) from transient per-request errors.
func (c *Client) classify(op string, err error) error {
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		c.mu.Lock()
		c.downTill = time.Now().Add(unavailableCooldown)
		c.mu.Unlock()
		return fmt.Errorf("embedding: %s: %v: %w", op, err, apperr.ErrUnavailable)
	}
	return fmt.Errorf("embedding: %s: %w", op, err)
}
