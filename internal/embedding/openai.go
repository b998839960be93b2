package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// OpenAIProvider implements Provider using OpenAI's embedding API via langchaingo.
type OpenAIProvider struct {
	client *openai.LLM
	config Config
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(ErrCodeInvalidConfig,
			"OpenAI provider requires api_key (or OPENAI_API_KEY environment variable)")
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, types.WrapError(ErrCodeProviderUnavailable,
			"failed to create OpenAI client", err)
	}

	return &OpenAIProvider{
		client: client,
		config: cfg,
	}, nil
}

// Embed generates an embedding vector for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := p.createEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings in chunks of MaxBatchSize. On chunk failure
// it returns the embeddings produced so far plus a *BatchError pointing at the
// first unembedded input.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
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

// createEmbeddings calls the API and verifies dimensionality.
func (p *OpenAIProvider) createEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	raw, err := p.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingFailed,
			"OpenAI embedding request failed", err)
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
func (p *OpenAIProvider) Dimensions() int {
	return p.config.Dimensions
}

// Model returns the name of the embedding model.
func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

// Health checks if the provider is operational by embedding a probe text.
func (p *OpenAIProvider) Health(ctx context.Context) types.HealthStatus {
	if _, err := p.Embed(ctx, "health check"); err != nil {
		return types.Degraded(fmt.Sprintf("OpenAI embedding probe failed: %v", err))
	}
	return types.Healthy(fmt.Sprintf("OpenAI embeddings operational (%s)", p.config.Model))
}
