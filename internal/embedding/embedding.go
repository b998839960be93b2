package embedding

import (
	"context"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Provider generates embedding vectors from text content.
// Implementations must be thread-safe for concurrent access.
type Provider interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts. On failure it
	// returns the embeddings produced so far together with a *BatchError
	// identifying the input that failed.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimensionality of embedding vectors.
	Dimensions() int

	// Model returns the name of the embedding model being used.
	Model() string

	// Health returns the health status of the provider.
	Health(ctx context.Context) types.HealthStatus
}

// BatchError reports a failure inside EmbedBatch. Index identifies the first
// input that was not embedded; everything before it succeeded.
type BatchError struct {
	// Index is the position of the failed input in the batch.
	Index int

	// Input is the text that failed to embed, truncated for logging.
	Input string

	// Cause is the underlying provider error.
	Cause error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding batch failed at input %d: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *BatchError) Unwrap() error {
	return e.Cause
}

// Config holds configuration for embedding providers.
type Config struct {
	// Provider specifies which implementation to use.
	// Options: "openai", "ollama", "mock"
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider"`

	// Model is the specific embedding model to use.
	// For OpenAI: "text-embedding-3-small" (1536 dims) or "text-embedding-3-large" (3072 dims)
	Model string `yaml:"model" json:"model" mapstructure:"model"`

	// APIKey is the API key for the embedding provider.
	// Can also be provided via environment variable (e.g., OPENAI_API_KEY)
	APIKey string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`

	// BaseURL is the base URL for the embedding API.
	// For Ollama this defaults to "http://localhost:11434".
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`

	// Dimensions is the expected embedding dimensionality. Must match the
	// vector index configuration in the graph store.
	Dimensions int `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions"`

	// MaxBatchSize caps how many texts are sent to the provider per request.
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size" mapstructure:"max_batch_size"`

	// RequestsPerSecond throttles outbound embedding calls. Zero disables
	// rate limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the token bucket burst size when rate limiting is enabled.
	Burst int `yaml:"burst" json:"burst" mapstructure:"burst"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1536
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 100
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return types.NewError(ErrCodeInvalidConfig, "embedding provider cannot be empty")
	}

	if c.Model == "" {
		return types.NewError(ErrCodeInvalidConfig, "embedding model cannot be empty")
	}

	if c.Dimensions <= 0 {
		return types.NewError(ErrCodeInvalidConfig, "dimensions must be positive")
	}

	if c.MaxBatchSize <= 0 {
		return types.NewError(ErrCodeInvalidConfig, "max_batch_size must be positive")
	}

	if c.RequestsPerSecond < 0 {
		return types.NewError(ErrCodeInvalidConfig, "requests_per_second must be non-negative")
	}

	return nil
}

// DefaultConfig returns a default configuration for the OpenAI provider.
func DefaultConfig() Config {
	c := Config{Provider: "openai"}
	c.ApplyDefaults()
	return c
}

// truncateInput shortens a failed input for error reporting.
func truncateInput(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
