package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// OllamaProvider implements Provider against a local Ollama server.
// No API key is required; embeddings are generated offline.
type OllamaProvider struct {
	client *ollama.LLM
	config Config
}

// NewOllamaProvider creates a new Ollama embedding provider.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, types.WrapError(ErrCodeProviderUnavailable,
			"failed to create Ollama client", err)
	}

	return &OllamaProvider{
		client: client,
		config: cfg,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.createEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings in chunks of MaxBatchSize with partial-result
// semantics matching the OpenAI provider.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += p.config.MaxBatchSize {
		end := start + p.config.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := p.createEmbeddings(ctx, texts[start:end])
		if err != nil {
			return results, &BatchError{
				Index: start,
				Input: truncateInput(texts[start]),
				Cause: err,
			}
		}
		results = append(results, vectors...)
	}

	return results, nil
}

func (p *OllamaProvider) createEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	raw, err := p.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingFailed,
			"Ollama embedding request failed", err)
	}
	if len(raw) != len(texts) {
		return nil, types.NewError(ErrCodeEmbeddingFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(raw)))
	}

	vectors := make([][]float64, len(raw))
	for i, vec := range raw {
		if len(vec) != p.config.Dimensions {
			return nil, types.NewError(ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", p.config.Dimensions, len(vec)))
		}
		converted := make([]float64, len(vec))
		for j, v := range vec {
			converted[j] = float64(v)
		}
		vectors[i] = converted
	}

	return vectors, nil
}

// Dimensions returns the dimensionality of embedding vectors.
func (p *OllamaProvider) Dimensions() int {
	return p.config.Dimensions
}

// Model returns the name of the embedding model.
func (p *OllamaProvider) Model() string {
	return p.config.Model
}

// Health checks if the provider is operational by embedding a probe text.
func (p *OllamaProvider) Health(ctx context.Context) types.HealthStatus {
	if _, err := p.Embed(ctx, "health check"); err != nil {
		return types.Degraded(fmt.Sprintf("Ollama embedding probe failed: %v", err))
	}
	return types.Healthy(fmt.Sprintf("Ollama embeddings operational (%s)", p.config.Model))
}
