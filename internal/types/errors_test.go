package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCodeQueryFailed ErrorCode = "GRAPH_QUERY_FAILED"
	testCodeWriteFailed ErrorCode = "GRAPH_WRITE_FAILED"
	testCodeRateLimit   ErrorCode = "EMBEDDING_RATE_LIMIT"
)

func TestAtlasError_Error(t *testing.T) {
	plain := NewError(testCodeQueryFailed, "query execution failed")
	assert.Equal(t, "[GRAPH_QUERY_FAILED] query execution failed", plain.Error())

	wrapped := WrapError(testCodeQueryFailed, "query execution failed", errors.New("connection timeout"))
	assert.Equal(t, "[GRAPH_QUERY_FAILED] query execution failed: connection timeout", wrapped.Error())
}

func TestAtlasError_Unwrap(t *testing.T) {
	assert.Nil(t, NewError(testCodeQueryFailed, "no cause").Unwrap())

	cause := errors.New("unexpected token")
	assert.Equal(t, cause, WrapError(testCodeQueryFailed, "wrapped", cause).Unwrap())
}

func TestAtlasError_Is(t *testing.T) {
	base := NewError(testCodeQueryFailed, "connection lost")

	tests := []struct {
		name   string
		err    *AtlasError
		target error
		want   bool
	}{
		{"same code matches", base, NewError(testCodeQueryFailed, "different message"), true},
		{"different code does not match", base, NewError(testCodeWriteFailed, "write failed"), false},
		{"standard error does not match", base, errors.New("standard error"), false},
		{"wrapped error with same code matches",
			WrapError(testCodeQueryFailed, "wrapped", errors.New("inner")), base, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Is(tt.target))
		})
	}
}

func TestConstructors(t *testing.T) {
	err := NewError(testCodeQueryFailed, "query execution failed")
	assert.Equal(t, testCodeQueryFailed, err.Code)
	assert.False(t, err.Retryable)
	assert.Nil(t, err.Cause)

	retryable := NewRetryableError(testCodeRateLimit, "rate limited")
	assert.True(t, retryable.Retryable)

	cause := fmt.Errorf("underlying error")
	wrapped := WrapError(testCodeQueryFailed, "dispatch failed", cause)
	assert.Equal(t, cause, wrapped.Cause)
	assert.False(t, wrapped.Retryable)
}

func TestAtlasError_ErrorsIsCompatibility(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapError(testCodeQueryFailed, "graph query failed", original)

	assert.True(t, errors.Is(wrapped, original), "must unwrap to original error")
	assert.True(t, errors.Is(wrapped, NewError(testCodeQueryFailed, "different message")),
		"must match by error code")
	assert.False(t, errors.Is(wrapped, NewError(testCodeWriteFailed, "write failed")))
}

func TestAtlasError_ErrorsAsCompatibility(t *testing.T) {
	err := WrapError(testCodeQueryFailed, "embed call failed", errors.New("503 from provider"))

	var atlasErr *AtlasError
	require.True(t, errors.As(err, &atlasErr))
	assert.Equal(t, testCodeQueryFailed, atlasErr.Code)
	assert.Equal(t, "embed call failed", atlasErr.Message)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(testCodeRateLimit, "slow down")))
	assert.False(t, IsRetryable(NewError(testCodeQueryFailed, "bad spec")))

	wrapped := fmt.Errorf("outer: %w", NewRetryableError(testCodeRateLimit, "slow down"))
	assert.True(t, IsRetryable(wrapped), "must see through wrapping")

	assert.False(t, IsRetryable(errors.New("plain")))
}
