package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/agent"
	"github.com/starford/ansuz/internal/index"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Duration wraps time.Duration so YAML configs can say "90s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("config: duration cannot be negative: %s", raw)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Snapshot  SnapshotConfig    `yaml:"snapshot"`
	Index     IndexConfig       `yaml:"index"`
	LLM       LLMConfig         `yaml:"llm"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	Agent     AgentConfig       `yaml:"agent"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SnapshotConfig holds the index snapshot database location. An empty path
// disables snapshot persistence; the index then rebuilds on every start.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig tunes scanning, embedding, and the connection graph. Zero
// values fall back to the index package defaults.
type IndexConfig struct {
	IncludePrefixes   []string `yaml:"include_prefixes"`
	ExcludePrefixes   []string `yaml:"exclude_prefixes"`
	MinContentLength  int      `yaml:"min_content_length"`
	EmbedBatchSize    int      `yaml:"embed_batch_size"`
	EmbedConcurrency  int      `yaml:"embed_concurrency"`
	EmbedMaxChars     int      `yaml:"embed_max_chars"`
	SemanticEdgeCap   int      `yaml:"semantic_edge_cap"`
	SemanticEdgeMin   float64  `yaml:"semantic_edge_min"`
	ReconcileInterval Duration `yaml:"reconcile_interval"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinContentLength, validation.Min(0)),
		validation.Field(&c.EmbedBatchSize, validation.Min(0)),
		validation.Field(&c.EmbedConcurrency, validation.Min(0)),
		validation.Field(&c.EmbedMaxChars, validation.Min(0)),
		validation.Field(&c.SemanticEdgeCap, validation.Min(0)),
		validation.Field(&c.SemanticEdgeMin, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Options converts the section into index options. Reconcile callbacks are
// wired by the caller.
func (c *IndexConfig) Options() index.Options {
	return index.Options{
		IncludePrefixes:   c.IncludePrefixes,
		ExcludePrefixes:   c.ExcludePrefixes,
		MinContentLength:  c.MinContentLength,
		EmbedBatchSize:    c.EmbedBatchSize,
		EmbedConcurrency:  c.EmbedConcurrency,
		EmbedMaxChars:     c.EmbedMaxChars,
		SemanticEdgeCap:   c.SemanticEdgeCap,
		SemanticEdgeMin:   c.SemanticEdgeMin,
		ReconcileInterval: c.ReconcileInterval.Duration(),
	}
}

// LLMConfig holds the OpenAI-compatible chat endpoint configuration. The API
// key is read from the environment variable named by APIKeyEnv, never from
// the config file.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.APIKeyEnv, validation.Required),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	)
}

// EmbeddingConfig holds the OpenAI-compatible embeddings endpoint
// configuration. Like LLMConfig, the key comes from the environment.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// AgentConfig tunes the orchestrator loop.
type AgentConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	ContextBudget int    `yaml:"context_budget"`
	ToolMode      string `yaml:"tool_mode"`
}

// Validate validates the agent configuration.
func (c *AgentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxIterations, validation.Min(0)),
		validation.Field(&c.ContextBudget, validation.Min(0)),
		validation.Field(&c.ToolMode, validation.In(agent.ModeNative, agent.ModeText)),
	)
}

// Options converts the section into orchestrator options.
func (c *AgentConfig) Options() agent.Options {
	return agent.Options{
		MaxIterations: c.MaxIterations,
		ContextBudget: c.ContextBudget,
		ToolMode:      c.ToolMode,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Snapshot: SnapshotConfig{
			Path: "./ansuz.db",
		},
		Index: IndexConfig{
			ReconcileInterval: Duration(5 * time.Minute),
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Agent: AgentConfig{
			MaxIterations: 5,
			ContextBudget: 8000,
			ToolMode:      agent.ModeNative,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
