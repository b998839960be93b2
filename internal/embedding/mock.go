package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// MockCall represents a recorded method call on the mock provider.
type MockCall struct {
	Method    string
	Args      []interface{}
	Timestamp time.Time
}

// MockProvider is a mock implementation of Provider for testing.
// It generates deterministic embeddings based on text hash, ensuring
// the same text always produces the same embedding.
type MockProvider struct {
	mu           sync.RWMutex
	dimensions   int
	model        string
	calls        []MockCall
	embedError   error
	failAtIndex  int
	healthStatus types.HealthStatus
}

// NewMockProvider creates a new mock embedding provider for testing.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		dimensions:   1536,
		model:        "mock-embedder",
		calls:        make([]MockCall, 0),
		failAtIndex:  -1,
		healthStatus: types.NewHealthStatus(types.HealthStateHealthy, "mock embedding provider"),
	}
}

// Embed generates a deterministic embedding for a single text.
// The embedding is derived from a SHA256 hash of the text, ensuring
// consistency across calls with the same input.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Method:    "Embed",
		Args:      []interface{}{text},
		Timestamp: time.Now(),
	})

	if m.embedError != nil {
		return nil, m.embedError
	}

	return m.generateEmbedding(text), nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
// When a failure index is configured it returns the prefix embedded so far
// plus a *BatchError, mirroring the production providers.
func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Method:    "EmbedBatch",
		Args:      []interface{}{texts},
		Timestamp: time.Now(),
	})

	embeddings := make([][]float64, 0, len(texts))
	for i, text := range texts {
		if m.embedError != nil && (m.failAtIndex < 0 || i >= m.failAtIndex) {
			return embeddings, &BatchError{
				Index: i,
				Input: truncateInput(text),
				Cause: m.embedError,
			}
		}
		embeddings = append(embeddings, m.generateEmbedding(text))
	}

	return embeddings, nil
}

// generateEmbedding creates a deterministic embedding from text using SHA256.
// The hash seeds a pseudo-random number generator, which produces consistent
// float64 values, then the vector is normalized to unit length.
func (m *MockProvider) generateEmbedding(text string) []float64 {
	hash := sha256.Sum256([]byte(text))

	seed := int64(binary.BigEndian.Uint64(hash[:8]))
	rng := rand.New(rand.NewSource(seed))

	embedding := make([]float64, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		embedding[i] = (rng.Float64() * 2) - 1
	}

	return normalizeVector(embedding)
}

// normalizeVector scales a vector to unit length.
func normalizeVector(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Dimensions returns the dimensionality of the embedding vectors.
func (m *MockProvider) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Model returns the name of the mock embedding model.
func (m *MockProvider) Model() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Health returns the configured health status.
func (m *MockProvider) Health(ctx context.Context) types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthStatus
}

// SetDimensions configures the embedding dimensionality.
func (m *MockProvider) SetDimensions(dims int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dims > 0 {
		m.dimensions = dims
	}
}

// SetEmbedError configures Embed()/EmbedBatch() to fail with err.
func (m *MockProvider) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedError = err
	m.failAtIndex = -1
}

// SetBatchFailure configures EmbedBatch() to succeed for inputs before index
// and fail at index with err.
func (m *MockProvider) SetBatchFailure(index int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedError = err
	m.failAtIndex = index
}

// SetHealthStatus configures what Health() should return.
func (m *MockProvider) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = status
}

// GetCalls returns all recorded method calls.
func (m *MockProvider) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// GetCallsByMethod returns all calls to a specific method.
func (m *MockProvider) GetCallsByMethod(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]MockCall, 0)
	for _, call := range m.calls {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Reset clears recorded calls and error injection.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]MockCall, 0)
	m.embedError = nil
	m.failAtIndex = -1
	m.healthStatus = types.NewHealthStatus(types.HealthStateHealthy, "mock embedding provider")
}
