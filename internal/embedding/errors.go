package embedding

import "github.com/codeatlas-ai/codeatlas/internal/types"

// Embedding provider error codes
const (
	ErrCodeProviderUnavailable  types.ErrorCode = "EMBEDDING_PROVIDER_UNAVAILABLE"
	ErrCodeEmbeddingFailed      types.ErrorCode = "EMBEDDING_FAILED"
	ErrCodeEmbeddingBatchFailed types.ErrorCode = "EMBEDDING_BATCH_FAILED"
	ErrCodeDimensionMismatch    types.ErrorCode = "EMBEDDING_DIMENSION_MISMATCH"
	ErrCodeInvalidConfig        types.ErrorCode = "INVALID_EMBEDDING_CONFIG"
)
