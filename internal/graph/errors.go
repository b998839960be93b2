package graph

import "github.com/codeatlas-ai/codeatlas/internal/types"

// Graph database error codes
const (
	// Connection errors
	ErrCodeGraphConnectionFailed types.ErrorCode = "GRAPH_CONNECTION_FAILED"
	ErrCodeGraphConnectionLost   types.ErrorCode = "GRAPH_CONNECTION_LOST"
	ErrCodeGraphConnectionClosed types.ErrorCode = "GRAPH_CONNECTION_CLOSED"

	// Configuration errors
	ErrCodeGraphInvalidConfig types.ErrorCode = "GRAPH_INVALID_CONFIG"

	// Query errors
	ErrCodeGraphQueryFailed   types.ErrorCode = "GRAPH_QUERY_FAILED"
	ErrCodeGraphQueryTimeout  types.ErrorCode = "GRAPH_QUERY_TIMEOUT"
	ErrCodeGraphInvalidQuery  types.ErrorCode = "GRAPH_INVALID_QUERY"
	ErrCodeGraphResultParsing types.ErrorCode = "GRAPH_RESULT_PARSING"

	// Write errors
	ErrCodeGraphWriteFailed types.ErrorCode = "GRAPH_WRITE_FAILED"

	// Vector index errors
	ErrCodeGraphVectorQueryFailed types.ErrorCode = "GRAPH_VECTOR_QUERY_FAILED"
	ErrCodeGraphIndexFailed       types.ErrorCode = "GRAPH_INDEX_FAILED"
)
