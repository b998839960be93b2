// Package tracking records an append-only change history for ingested
// entities as :ChangeRecord nodes in the graph.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Tracking error codes
const (
	ErrCodeRecordFailed  types.ErrorCode = "TRACKING_RECORD_FAILED"
	ErrCodeHistoryFailed types.ErrorCode = "TRACKING_HISTORY_FAILED"
	ErrCodeInvalidRecord types.ErrorCode = "TRACKING_INVALID_RECORD"
)

// ChangeKind classifies what happened to an entity.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeRecord is one append-only history entry for an entity.
type ChangeRecord struct {
	ID         string
	EntityID   string
	Kind       ChangeKind
	PrevHash   string
	NewHash    string
	RecordedAt time.Time
}

// RecordFailure attributes a RecordBatch failure to a single record.
type RecordFailure struct {
	Record ChangeRecord
	Err    error
}

// DefaultConcurrency bounds parallel writes in RecordBatch when the
// caller passes zero.
const DefaultConcurrency = 10

// Tracker persists change records.
type Tracker interface {
	// Record writes one change record.
	Record(ctx context.Context, record ChangeRecord) error

	// RecordBatch writes records concurrently. Failures are independent:
	// a failed record never blocks or rolls back the others.
	RecordBatch(ctx context.Context, records []ChangeRecord, concurrency int) []RecordFailure

	// History returns all change records for an entity, ascending by
	// recording time.
	History(ctx context.Context, entityID string) ([]ChangeRecord, error)
}

// GraphTracker stores change records as :ChangeRecord nodes.
type GraphTracker struct {
	client graph.Client
	logger *slog.Logger
}

// NewGraphTracker creates a Tracker backed by the graph client.
func NewGraphTracker(client graph.Client, logger *slog.Logger) *GraphTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphTracker{client: client, logger: logger}
}

// History records are append-only, so CREATE rather than MERGE: two
// changes to the same entity must never collapse into one node.
const createRecordCypher = `CREATE (c:ChangeRecord {
	uuid: $uuid,
	entity_id: $entity_id,
	kind: $kind,
	prev_hash: $prev_hash,
	new_hash: $new_hash,
	recorded_at: $recorded_at
})`

func (t *GraphTracker) Record(ctx context.Context, record ChangeRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}

	params := map[string]any{
		"uuid":        record.ID,
		"entity_id":   record.EntityID,
		"kind":        string(record.Kind),
		"prev_hash":   record.PrevHash,
		"new_hash":    record.NewHash,
		"recorded_at": record.RecordedAt.UTC().Format(time.RFC3339Nano),
	}

	if _, err := t.client.WriteQuery(ctx, createRecordCypher, params); err != nil {
		return types.WrapError(ErrCodeRecordFailed,
			fmt.Sprintf("failed to record %s change for entity %s", record.Kind, record.EntityID), err)
	}
	return nil
}

func (t *GraphTracker) RecordBatch(ctx context.Context, records []ChangeRecord, concurrency int) []RecordFailure {
	if len(records) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []RecordFailure
	)
	sem := make(chan struct{}, concurrency)

	for _, record := range records {
		wg.Add(1)
		go func(record ChangeRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := t.Record(ctx, record); err != nil {
				mu.Lock()
				failures = append(failures, RecordFailure{Record: record, Err: err})
				mu.Unlock()
			}
		}(record)
	}
	wg.Wait()

	if len(failures) > 0 {
		t.logger.Warn("change records failed",
			"total", len(records),
			"failed", len(failures))
	}
	return failures
}

const historyCypher = `MATCH (c:ChangeRecord {entity_id: $entity_id})
RETURN c.uuid AS uuid, c.entity_id AS entity_id, c.kind AS kind,
       c.prev_hash AS prev_hash, c.new_hash AS new_hash,
       c.recorded_at AS recorded_at
ORDER BY c.recorded_at ASC`

func (t *GraphTracker) History(ctx context.Context, entityID string) ([]ChangeRecord, error) {
	if entityID == "" {
		return nil, types.NewError(ErrCodeInvalidRecord, "entity ID cannot be empty")
	}

	result, err := t.client.Query(ctx, historyCypher, map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, types.WrapError(ErrCodeHistoryFailed,
			fmt.Sprintf("failed to load history for entity %s", entityID), err)
	}

	records := make([]ChangeRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		cr := ChangeRecord{
			ID:       stringValue(rec["uuid"]),
			EntityID: stringValue(rec["entity_id"]),
			Kind:     ChangeKind(stringValue(rec["kind"])),
			PrevHash: stringValue(rec["prev_hash"]),
			NewHash:  stringValue(rec["new_hash"]),
		}
		if ts := stringValue(rec["recorded_at"]); ts != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				cr.RecordedAt = parsed
			}
		}
		records = append(records, cr)
	}

	// The query already orders by recorded_at; keep the guarantee even if
	// timestamps came back unparsed or equal.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RecordedAt.Before(records[j].RecordedAt)
	})

	return records, nil
}

func validateRecord(record ChangeRecord) error {
	if record.EntityID == "" {
		return types.NewError(ErrCodeInvalidRecord, "entity ID cannot be empty")
	}
	switch record.Kind {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
	default:
		return types.NewError(ErrCodeInvalidRecord,
			fmt.Sprintf("invalid change kind %q", record.Kind))
	}
	return nil
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
