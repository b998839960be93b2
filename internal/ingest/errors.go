package ingest

import "github.com/codeatlas-ai/codeatlas/internal/types"

// Ingestion error codes
const (
	ErrCodeScanFailed  types.ErrorCode = "INGEST_SCAN_FAILED"
	ErrCodeDiffFailed  types.ErrorCode = "INGEST_DIFF_FAILED"
	ErrCodeWriteFailed types.ErrorCode = "INGEST_WRITE_FAILED"
	ErrCodeWatchFailed types.ErrorCode = "INGEST_WATCH_FAILED"
)
