package tracking

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

func newTestTracker(t *testing.T) (*GraphTracker, *graph.MockClient) {
	t.Helper()

	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))
	return NewGraphTracker(client, slog.Default()), client
}

func TestGraphTracker_Record(t *testing.T) {
	tracker, client := newTestTracker(t)

	err := tracker.Record(context.Background(), ChangeRecord{
		EntityID: "entity-1",
		Kind:     ChangeUpdated,
		PrevHash: "abc",
		NewHash:  "def",
	})
	require.NoError(t, err)

	calls := client.GetCallsByMethod("WriteQuery")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Args[0].(string), "CREATE (c:ChangeRecord")

	params := calls[0].Args[1].(map[string]any)
	assert.Equal(t, "entity-1", params["entity_id"])
	assert.Equal(t, "updated", params["kind"])
	assert.NotEmpty(t, params["uuid"], "missing IDs should be generated")
	assert.NotEmpty(t, params["recorded_at"])
}

func TestGraphTracker_Record_Validation(t *testing.T) {
	tracker, client := newTestTracker(t)

	tests := []struct {
		name   string
		record ChangeRecord
	}{
		{"empty entity ID", ChangeRecord{Kind: ChangeCreated}},
		{"invalid kind", ChangeRecord{EntityID: "e", Kind: "renamed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tracker.Record(context.Background(), tt.record)
			require.Error(t, err)

			var atlasErr *types.AtlasError
			require.ErrorAs(t, err, &atlasErr)
			assert.Equal(t, ErrCodeInvalidRecord, atlasErr.Code)
		})
	}

	assert.Empty(t, client.GetCallsByMethod("WriteQuery"),
		"invalid records must never reach the graph")
}

func TestGraphTracker_Record_WriteFailure(t *testing.T) {
	tracker, client := newTestTracker(t)
	client.SetWriteError(types.NewError(graph.ErrCodeGraphWriteFailed, "down"))

	err := tracker.Record(context.Background(), ChangeRecord{
		EntityID: "entity-1",
		Kind:     ChangeCreated,
	})
	require.Error(t, err)

	var atlasErr *types.AtlasError
	require.ErrorAs(t, err, &atlasErr)
	assert.Equal(t, ErrCodeRecordFailed, atlasErr.Code)
}

func TestGraphTracker_RecordBatch(t *testing.T) {
	tracker, client := newTestTracker(t)

	records := []ChangeRecord{
		{EntityID: "a", Kind: ChangeCreated},
		{EntityID: "b", Kind: ChangeUpdated},
		{EntityID: "c", Kind: ChangeDeleted},
	}

	failures := tracker.RecordBatch(context.Background(), records, 2)
	assert.Empty(t, failures)
	assert.Len(t, client.GetCallsByMethod("WriteQuery"), 3)
}

func TestGraphTracker_RecordBatch_PartialFailure(t *testing.T) {
	tracker, _ := newTestTracker(t)

	records := []ChangeRecord{
		{EntityID: "a", Kind: ChangeCreated},
		{EntityID: "", Kind: ChangeCreated},
		{EntityID: "c", Kind: "bogus"},
	}

	failures := tracker.RecordBatch(context.Background(), records, 0)
	require.Len(t, failures, 2)
	for _, f := range failures {
		assert.Error(t, f.Err)
	}
}

func TestGraphTracker_RecordBatch_Empty(t *testing.T) {
	tracker, client := newTestTracker(t)
	assert.Nil(t, tracker.RecordBatch(context.Background(), nil, 4))
	assert.Empty(t, client.GetCallsByMethod("WriteQuery"), "empty batch must not write")
}

func TestGraphTracker_History(t *testing.T) {
	tracker, client := newTestTracker(t)

	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	client.AddQueryResult(graph.QueryResult{
		Records: []map[string]any{
			{
				"uuid": "r2", "entity_id": "entity-1", "kind": "updated",
				"prev_hash": "aaa", "new_hash": "bbb",
				"recorded_at": later.Format(time.RFC3339Nano),
			},
			{
				"uuid": "r1", "entity_id": "entity-1", "kind": "created",
				"prev_hash": "", "new_hash": "aaa",
				"recorded_at": earlier.Format(time.RFC3339Nano),
			},
		},
	})

	history, err := tracker.History(context.Background(), "entity-1")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "r1", history[0].ID, "history must ascend by time")
	assert.Equal(t, ChangeCreated, history[0].Kind)
	assert.Equal(t, "r2", history[1].ID)
	assert.True(t, history[0].RecordedAt.Before(history[1].RecordedAt))
}

func TestGraphTracker_History_EmptyEntityID(t *testing.T) {
	tracker, _ := newTestTracker(t)
	_, err := tracker.History(context.Background(), "")
	require.Error(t, err)
}

func TestGraphTracker_History_QueryFailure(t *testing.T) {
	tracker, client := newTestTracker(t)
	client.SetQueryError(types.NewError(graph.ErrCodeGraphQueryFailed, "down"))

	_, err := tracker.History(context.Background(), "entity-1")
	require.Error(t, err)

	var atlasErr *types.AtlasError
	require.ErrorAs(t, err, &atlasErr)
	assert.Equal(t, ErrCodeHistoryFailed, atlasErr.Code)
}
