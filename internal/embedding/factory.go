package embedding

import (
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// ProviderType represents available embedding provider implementations.
type ProviderType string

const (
	// ProviderTypeOpenAI uses OpenAI's embedding API (text-embedding-3-small/large).
	// Requires OPENAI_API_KEY or api_key in configuration.
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeOllama uses a local Ollama server. No API key required.
	ProviderTypeOllama ProviderType = "ollama"

	// ProviderTypeMock generates deterministic hash-derived embeddings.
	// Intended for tests and offline development.
	ProviderTypeMock ProviderType = "mock"
)

// NewProvider creates a provider based on the configuration. When
// RequestsPerSecond is set the provider is wrapped with a rate limiter.
func NewProvider(cfg Config) (Provider, error) {
	cfg.ApplyDefaults()

	var (
		provider Provider
		err      error
	)

	switch ProviderType(cfg.Provider) {
	case ProviderTypeOpenAI:
		provider, err = NewOpenAIProvider(cfg)
	case ProviderTypeOllama:
		provider, err = NewOllamaProvider(cfg)
	case ProviderTypeMock:
		mock := NewMockProvider()
		mock.SetDimensions(cfg.Dimensions)
		provider = mock
	default:
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("unknown embedding provider %q - must be 'openai', 'ollama' or 'mock'",
				cfg.Provider))
	}

	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond > 0 {
		provider = NewRateLimitedProvider(provider, cfg.RequestsPerSecond, cfg.Burst)
	}

	return provider, nil
}
