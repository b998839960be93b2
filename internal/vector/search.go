// Package vector provides semantic similarity search over graph vector indexes.
package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeatlas-ai/codeatlas/internal/embedding"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Vector search error codes
const (
	ErrCodeSearchFailed   types.ErrorCode = "VECTOR_SEARCH_FAILED"
	ErrCodeEmptyQuery     types.ErrorCode = "VECTOR_EMPTY_QUERY"
	ErrCodeInvalidOptions types.ErrorCode = "VECTOR_INVALID_OPTIONS"
	ErrCodeIndexCreation  types.ErrorCode = "VECTOR_INDEX_CREATION_FAILED"
)

// Match is a single similarity hit.
type Match struct {
	// UUID is the stable identity of the matched node.
	UUID string

	// Score is the similarity score reported by the index, higher is closer.
	Score float64

	// Properties holds the matched node's properties.
	Properties map[string]any

	// Labels holds the matched node's labels.
	Labels []string
}

// Options controls a similarity search.
type Options struct {
	// IndexName is the vector index to search. Required.
	IndexName string

	// TopK is the number of matches requested from the index.
	TopK int

	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore float64
}

// Validate checks the options before any network call.
func (o Options) Validate() error {
	if o.IndexName == "" {
		return types.NewError(ErrCodeInvalidOptions, "index name cannot be empty")
	}
	if o.TopK <= 0 {
		return types.NewError(ErrCodeInvalidOptions, "top_k must be positive")
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		return types.NewError(ErrCodeInvalidOptions,
			fmt.Sprintf("min_score must be between 0.0 and 1.0, got %f", o.MinScore))
	}
	return nil
}

// SearchService embeds query text and runs similarity search against the
// graph store's vector indexes.
type SearchService struct {
	client   graph.Client
	provider embedding.Provider
	logger   *slog.Logger
}

// NewSearchService creates a SearchService. A nil logger falls back to the
// default slog logger.
func NewSearchService(client graph.Client, provider embedding.Provider, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		client:   client,
		provider: provider,
		logger:   logger,
	}
}

// Search embeds text and returns matches from the configured index, ordered
// by score descending and filtered to opts.MinScore.
func (s *SearchService) Search(ctx context.Context, text string, opts Options) ([]Match, error) {
	if text == "" {
		return nil, types.NewError(ErrCodeEmptyQuery, "search text cannot be empty")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	queryVector, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed,
			"failed to embed search text", err)
	}

	return s.SearchVector(ctx, queryVector, opts)
}

// SearchVector returns matches for a pre-computed embedding.
func (s *SearchService) SearchVector(ctx context.Context, queryVector []float64, opts Options) ([]Match, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	raw, err := s.client.VectorQuery(ctx, opts.IndexName, queryVector, opts.TopK)
	if err != nil {
		return nil, types.WrapError(ErrCodeSearchFailed,
			fmt.Sprintf("vector query against %q failed", opts.IndexName), err)
	}

	matches := make([]Match, 0, len(raw))
	for _, m := range raw {
		if m.Score < opts.MinScore {
			continue
		}
		matches = append(matches, Match{
			UUID:       m.UUID,
			Score:      m.Score,
			Properties: m.Properties,
			Labels:     m.Labels,
		})
	}

	s.logger.Debug("vector search completed",
		"index", opts.IndexName,
		"top_k", opts.TopK,
		"matches", len(matches))

	return matches, nil
}

// Provider exposes the embedding provider backing this service.
func (s *SearchService) Provider() embedding.Provider {
	return s.provider
}
