package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// RateLimitedProvider wraps a Provider with a token bucket limiter so that
// outbound embedding calls never exceed the configured request rate.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a token bucket of perSecond tokens
// and the given burst size.
func NewRateLimitedProvider(inner Provider, perSecond float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Embed waits for a token, then delegates to the wrapped provider.
func (p *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingFailed, "rate limiter wait cancelled", err)
	}
	return p.inner.Embed(ctx, text)
}

// EmbedBatch waits for a token per underlying request, then delegates.
// The wrapped provider handles chunking; one token is consumed per batch call.
func (p *RateLimitedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, types.WrapError(ErrCodeEmbeddingBatchFailed, "rate limiter wait cancelled", err)
	}
	return p.inner.EmbedBatch(ctx, texts)
}

// Dimensions delegates to the wrapped provider.
func (p *RateLimitedProvider) Dimensions() int {
	return p.inner.Dimensions()
}

// Model delegates to the wrapped provider.
func (p *RateLimitedProvider) Model() string {
	return p.inner.Model()
}

// Health delegates to the wrapped provider without consuming a token.
func (p *RateLimitedProvider) Health(ctx context.Context) types.HealthStatus {
	return p.inner.Health(ctx)
}
