package ingest

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/embedding"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/tracking"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// staticParser returns a fixed parse result.
type staticParser struct {
	result ParseResult
	err    error
}

func (p *staticParser) Parse(_ context.Context, _ string) (ParseResult, error) {
	return p.result, p.err
}

// recordingTracker captures change records in memory.
type recordingTracker struct {
	records  []tracking.ChangeRecord
	failWith error
}

func (t *recordingTracker) Record(_ context.Context, record tracking.ChangeRecord) error {
	if t.failWith != nil {
		return t.failWith
	}
	t.records = append(t.records, record)
	return nil
}

func (t *recordingTracker) RecordBatch(ctx context.Context, records []tracking.ChangeRecord, _ int) []tracking.RecordFailure {
	var failures []tracking.RecordFailure
	for _, r := range records {
		if err := t.Record(ctx, r); err != nil {
			failures = append(failures, tracking.RecordFailure{Record: r, Err: err})
		}
	}
	return failures
}

func (t *recordingTracker) History(_ context.Context, _ string) ([]tracking.ChangeRecord, error) {
	return nil, nil
}

func testEntity(label, path, name, kind string, startLine int, content string) Entity {
	return Entity{
		Label:     label,
		Path:      path,
		Name:      name,
		Kind:      kind,
		StartLine: startLine,
		EndLine:   startLine + 5,
		Content:   content,
	}
}

func snapshotResult(entities ...Entity) graph.QueryResult {
	records := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		records = append(records, map[string]any{
			"uuid":         e.UUID(),
			"content_hash": e.ContentHash(),
			"labels":       []string{e.Label},
		})
	}
	return graph.QueryResult{Records: records}
}

func ingestConfig() config.IngestConfig {
	return config.IngestConfig{BatchSize: 500, EmbedOnIngest: true}
}

func functionIndexes() []config.VectorIndexConfig {
	return []config.VectorIndexConfig{
		{Name: "function_embeddings", Label: "Function", Property: "embedding", Dimensions: 1536},
	}
}

func newTestPipeline(t *testing.T, parser SourceParser, tracker tracking.Tracker) (*Pipeline, *graph.MockClient) {
	t.Helper()

	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))

	p := NewPipeline(client, parser, embedding.NewMockProvider(), tracker,
		ingestConfig(), functionIndexes(), "proj-1", slog.Default())
	return p, client
}

func TestEntity_DeterministicIdentity(t *testing.T) {
	a := testEntity("Function", "internal/graph/client.go", "Connect", "method", 42, "func Connect() {}")
	b := testEntity("Function", "internal/graph/client.go", "Connect", "method", 42, "func Connect() { /* changed */ }")

	assert.Equal(t, a.UUID(), b.UUID(), "identity ignores content")
	assert.NotEqual(t, a.ContentHash(), b.ContentHash(), "hash tracks content")

	moved := testEntity("Function", "internal/graph/client.go", "Connect", "method", 50, a.Content)
	assert.NotEqual(t, a.UUID(), moved.UUID(), "start line is part of identity")
}

func TestDiffEntities(t *testing.T) {
	existing := testEntity("Function", "a.go", "Old", "function", 1, "old body")
	changed := testEntity("Function", "a.go", "Changed", "function", 10, "v1")
	gone := testEntity("Function", "a.go", "Gone", "function", 20, "doomed")

	snapshot := map[string]snapshotEntry{
		existing.UUID(): {hash: existing.ContentHash(), label: "Function"},
		changed.UUID():  {hash: changed.ContentHash(), label: "Function"},
		gone.UUID():     {hash: gone.ContentHash(), label: "Function"},
	}

	changedNow := changed
	changedNow.Content = "v2"
	fresh := testEntity("Function", "b.go", "Fresh", "function", 1, "new")

	diff := diffEntities([]Entity{existing, changedNow, fresh}, snapshot)

	require.Len(t, diff.Created, 1)
	assert.Equal(t, "Fresh", diff.Created[0].Name)
	require.Len(t, diff.Updated, 1)
	assert.Equal(t, "Changed", diff.Updated[0].Name)
	require.Len(t, diff.Deleted, 1)
	assert.Equal(t, gone.UUID(), diff.Deleted[0].UUID)
	assert.Equal(t, 1, diff.Unchanged)
	assert.Equal(t, changed.ContentHash(), diff.prevHashes[changed.UUID()])
}

func TestPipeline_Run_FirstIngest(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() {}")
	file := testEntity("File", "a.go", "", "file", 0, "package a\n\nfunc Connect() {}")

	parser := &staticParser{result: ParseResult{
		Entities: []Entity{fn, file},
		Relationships: []Relationship{
			{Type: "DEFINED_IN", FromUUID: fn.UUID(), ToUUID: file.UUID()},
		},
	}}
	tracker := &recordingTracker{}
	p, client := newTestPipeline(t, parser, tracker)

	summary, err := p.Run(context.Background(), "/src")
	require.NoError(t, err)

	assert.Equal(t, StageComplete, summary.Stage)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 2, summary.NodesWritten)
	assert.Equal(t, 1, summary.RelationshipsMerged)
	assert.Empty(t, summary.EntityFailures)

	// One change record per created entity.
	require.Len(t, tracker.records, 2)
	for _, r := range tracker.records {
		assert.Equal(t, tracking.ChangeCreated, r.Kind)
		assert.Empty(t, r.PrevHash)
		assert.NotEmpty(t, r.NewHash)
	}

	// All node batches must complete before any relationship batch.
	writes := client.GetCallsByMethod("WriteQuery")
	require.Len(t, writes, 3)
	assert.Contains(t, writes[0].Args[0].(string), "MERGE (n:File")
	assert.Contains(t, writes[1].Args[0].(string), "MERGE (n:Function")
	assert.Contains(t, writes[2].Args[0].(string), "MERGE (a)-[r:DEFINED_IN]->(b)")
}

func TestPipeline_Run_UnchangedSourceWritesNothing(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() {}")
	parser := &staticParser{result: ParseResult{Entities: []Entity{fn}}}
	tracker := &recordingTracker{}
	p, client := newTestPipeline(t, parser, tracker)

	client.AddQueryResult(snapshotResult(fn))

	summary, err := p.Run(context.Background(), "/src")
	require.NoError(t, err)

	assert.Equal(t, StageComplete, summary.Stage)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Zero(t, summary.NodesWritten)
	assert.Empty(t, client.GetCallsByMethod("WriteQuery"), "unchanged source must cause zero writes")
	assert.Empty(t, tracker.records, "unchanged source must cause zero change records")
}

func TestPipeline_Run_UpdateAndDelete(t *testing.T) {
	kept := testEntity("Function", "a.go", "Kept", "function", 1, "v1")
	gone := testEntity("Function", "a.go", "Gone", "function", 10, "doomed")

	parser := &staticParser{}
	tracker := &recordingTracker{}
	p, client := newTestPipeline(t, parser, tracker)

	client.AddQueryResult(snapshotResult(kept, gone))

	keptNow := kept
	keptNow.Content = "v2"
	parser.result = ParseResult{Entities: []Entity{keptNow}}

	summary, err := p.Run(context.Background(), "/src")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Deleted)
	assert.Zero(t, summary.Created)

	writes := client.GetCallsByMethod("WriteQuery")
	require.Len(t, writes, 2)
	assert.Contains(t, writes[0].Args[0].(string), "MERGE (n:Function")
	assert.Contains(t, writes[1].Args[0].(string), "DETACH DELETE n")

	require.Len(t, tracker.records, 2)
	kinds := map[tracking.ChangeKind]tracking.ChangeRecord{}
	for _, r := range tracker.records {
		kinds[r.Kind] = r
	}
	assert.Equal(t, kept.ContentHash(), kinds[tracking.ChangeUpdated].PrevHash)
	assert.Equal(t, keptNow.ContentHash(), kinds[tracking.ChangeUpdated].NewHash)
	assert.Equal(t, gone.ContentHash(), kinds[tracking.ChangeDeleted].PrevHash)
	assert.Empty(t, kinds[tracking.ChangeDeleted].NewHash)
}

func TestPipeline_Run_EmbedsIndexedLabels(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() {}")
	dir := testEntity("Directory", "a", "", "directory", 0, "")

	parser := &staticParser{result: ParseResult{Entities: []Entity{fn, dir}}}
	p, client := newTestPipeline(t, parser, &recordingTracker{})

	_, err := p.Run(context.Background(), "/src")
	require.NoError(t, err)

	writes := client.GetCallsByMethod("WriteQuery")
	for _, call := range writes {
		cypher := call.Args[0].(string)
		batch := call.Args[1].(map[string]any)["batch"].([]map[string]any)
		props := batch[0]["props"].(map[string]any)

		if strings.Contains(cypher, "MERGE (n:Function") {
			assert.Contains(t, props, "embedding", "indexed label must carry an embedding")
		}
		if strings.Contains(cypher, "MERGE (n:Directory") {
			assert.NotContains(t, props, "embedding", "unindexed label must not carry an embedding")
		}
	}
}

func TestEmbedDiff_MultipleDescriptorsPerLabel(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() error {\n\treturn nil\n}")
	fn.Properties = map[string]any{"signature": "func Connect() error"}

	indexes := []config.VectorIndexConfig{
		{Name: "function_signatures", Label: "Function", Property: "signature_embedding", SourceField: "signature", Dimensions: 1536},
		{Name: "function_bodies", Label: "Function", Property: "body_embedding", Dimensions: 1536},
	}

	vectors, failures := embedDiff(context.Background(), embedding.NewMockProvider(),
		indexes, []Entity{fn}, slog.Default())
	require.Empty(t, failures)

	require.Len(t, vectors[fn.UUID()], 2, "each descriptor on the label must yield its own embedding")
	byProperty := map[string][]float64{}
	for _, vec := range vectors[fn.UUID()] {
		byProperty[vec.property] = vec.values
	}
	require.Contains(t, byProperty, "signature_embedding")
	require.Contains(t, byProperty, "body_embedding")
	assert.NotEqual(t, byProperty["signature_embedding"], byProperty["body_embedding"],
		"distinct source fields must embed distinct text")
}

func TestEmbedDiff_MissingSourceFieldSkipsDescriptorOnly(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() {}")

	indexes := []config.VectorIndexConfig{
		{Name: "function_signatures", Label: "Function", Property: "signature_embedding", SourceField: "signature", Dimensions: 1536},
		{Name: "function_bodies", Label: "Function", Property: "body_embedding", Dimensions: 1536},
	}

	vectors, failures := embedDiff(context.Background(), embedding.NewMockProvider(),
		indexes, []Entity{fn}, slog.Default())
	require.Empty(t, failures)

	require.Len(t, vectors[fn.UUID()], 1)
	assert.Equal(t, "body_embedding", vectors[fn.UUID()][0].property)
}

func TestPipeline_Run_WritesOneEmbeddingPerDescriptor(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() error {\n\treturn nil\n}")
	fn.Properties = map[string]any{"signature": "func Connect() error"}

	parser := &staticParser{result: ParseResult{Entities: []Entity{fn}}}
	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))

	indexes := []config.VectorIndexConfig{
		{Name: "function_signatures", Label: "Function", Property: "signature_embedding", SourceField: "signature", Dimensions: 1536},
		{Name: "function_bodies", Label: "Function", Property: "body_embedding", Dimensions: 1536},
	}
	p := NewPipeline(client, parser, embedding.NewMockProvider(), &recordingTracker{},
		ingestConfig(), indexes, "proj-1", slog.Default())

	_, err := p.Run(context.Background(), "/src")
	require.NoError(t, err)

	writes := client.GetCallsByMethod("WriteQuery")
	require.Len(t, writes, 1)
	batch := writes[0].Args[1].(map[string]any)["batch"].([]map[string]any)
	props := batch[0]["props"].(map[string]any)
	assert.Contains(t, props, "signature_embedding")
	assert.Contains(t, props, "body_embedding")
}

func TestPipeline_Run_EmbeddingFailureDoesNotBlockWrite(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "func Connect() {}")
	parser := &staticParser{result: ParseResult{Entities: []Entity{fn}}}

	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))

	provider := embedding.NewMockProvider()
	provider.SetBatchFailure(0, types.NewError(embedding.ErrCodeEmbeddingFailed, "quota exhausted"))

	p := NewPipeline(client, parser, provider, &recordingTracker{},
		ingestConfig(), functionIndexes(), "proj-1", slog.Default())

	summary, err := p.Run(context.Background(), "/src")
	require.NoError(t, err)

	assert.Equal(t, StageComplete, summary.Stage)
	assert.Equal(t, 1, summary.NodesWritten, "node must still be written without its embedding")
	require.Len(t, summary.EntityFailures, 1)
	assert.Equal(t, fn.UUID(), summary.EntityFailures[0].EntityID)

	writes := client.GetCallsByMethod("WriteQuery")
	require.Len(t, writes, 1)
	batch := writes[0].Args[1].(map[string]any)["batch"].([]map[string]any)
	assert.NotContains(t, batch[0]["props"].(map[string]any), "embedding")
}

func TestPipeline_Run_ScanFailure(t *testing.T) {
	parser := &staticParser{err: types.NewError(ErrCodeScanFailed, "unreadable tree")}
	p, _ := newTestPipeline(t, parser, &recordingTracker{})

	summary, err := p.Run(context.Background(), "/src")
	require.Error(t, err)
	assert.Equal(t, StageFailed, summary.Stage)
}

func TestPipeline_Run_WriteFailure(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "body")
	parser := &staticParser{result: ParseResult{Entities: []Entity{fn}}}
	tracker := &recordingTracker{}
	p, client := newTestPipeline(t, parser, tracker)

	client.SetWriteError(types.NewError(graph.ErrCodeGraphWriteFailed, "down"))

	summary, err := p.Run(context.Background(), "/src")
	require.Error(t, err)
	assert.Equal(t, StageFailed, summary.Stage)
	assert.Empty(t, tracker.records, "failed write stage must not record changes")
}

func TestPipeline_Run_TrackerFailuresReported(t *testing.T) {
	fn := testEntity("Function", "a.go", "Connect", "function", 1, "body")
	parser := &staticParser{result: ParseResult{Entities: []Entity{fn}}}
	tracker := &recordingTracker{failWith: types.NewError(tracking.ErrCodeRecordFailed, "down")}
	p, _ := newTestPipeline(t, parser, tracker)

	summary, err := p.Run(context.Background(), "/src")
	require.NoError(t, err, "record failures are reported, not fatal")

	assert.Equal(t, StageComplete, summary.Stage)
	require.Len(t, summary.EntityFailures, 1)
	assert.Equal(t, StageChangeTracking, summary.EntityFailures[0].Stage)
}

func TestWriter_BatchesByConfiguredSize(t *testing.T) {
	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))

	entities := make([]Entity, 5)
	for i := range entities {
		entities[i] = testEntity("Function", "a.go", "F", "function", i*10+1, "body")
	}

	w := newWriter(client, 2, "proj-1")
	written, err := w.writeNodes(context.Background(), entities, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, written)
	assert.Len(t, client.GetCallsByMethod("WriteQuery"), 3)
}

func TestWriter_RejectsUnsafeLabel(t *testing.T) {
	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))

	w := newWriter(client, 500, "proj-1")
	_, err := w.writeNodes(context.Background(),
		[]Entity{testEntity("Function) DETACH DELETE n //", "a.go", "F", "function", 1, "x")}, nil)
	require.Error(t, err)
	assert.Empty(t, client.GetCallsByMethod("WriteQuery"))
}

func TestSkipWatchPath(t *testing.T) {
	assert.True(t, skipWatchPath("/src/vendor"))
	assert.True(t, skipWatchPath("/src/.git"))
	assert.True(t, skipWatchPath("/src/node_modules"))
	assert.False(t, skipWatchPath("/src/internal"))
	assert.False(t, skipWatchPath("/src/main.go"))
}
