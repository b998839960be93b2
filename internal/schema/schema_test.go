package schema

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

func newTestIntrospector(t *testing.T, vectorCfg config.VectorConfig) (*Introspector, *graph.MockClient) {
	t.Helper()

	client := graph.NewMockClient()
	require.NoError(t, client.Connect(context.Background()))
	return NewIntrospector(client, vectorCfg, slog.Default()), client
}

func queueIntrospection(client *graph.MockClient, labels []string, samples map[string][]map[string]any, relTypes []string, indexes, constraints []map[string]any) {
	labelRecords := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		labelRecords = append(labelRecords, map[string]any{"label": l})
	}
	client.AddQueryResult(graph.QueryResult{Records: labelRecords})

	for _, l := range labels {
		var records []map[string]any
		for _, props := range samples[l] {
			records = append(records, map[string]any{"props": props})
		}
		client.AddQueryResult(graph.QueryResult{Records: records})
	}

	relRecords := make([]map[string]any, 0, len(relTypes))
	for _, r := range relTypes {
		relRecords = append(relRecords, map[string]any{"relationshipType": r})
	}
	client.AddQueryResult(graph.QueryResult{Records: relRecords})

	client.AddQueryResult(graph.QueryResult{Records: indexes})
	client.AddQueryResult(graph.QueryResult{Records: constraints})
}

func TestIntrospector_Introspect(t *testing.T) {
	vectorCfg := config.VectorConfig{Indexes: []config.VectorIndexConfig{
		{Name: "function_embeddings", Label: "Function", Property: "embedding", Dimensions: 1536, Similarity: "cosine"},
	}}
	introspector, client := newTestIntrospector(t, vectorCfg)

	queueIntrospection(client,
		[]string{"File", "Function"},
		map[string][]map[string]any{
			"File": {
				{"uuid": "u1", "path": "a.go"},
			},
			"Function": {
				{"uuid": "u2", "name": "Connect", "start_line": int64(10)},
				{"uuid": "u3", "name": "Close"},
			},
		},
		[]string{"CALLS", "DEFINED_IN"},
		[]map[string]any{
			{
				"name": "function_embeddings", "type": "VECTOR",
				"labelsOrTypes": []any{"Function"}, "properties": []any{"embedding"},
			},
			{
				"name": "uuid_lookup", "type": "RANGE",
				"labelsOrTypes": []any{"Function"}, "properties": []any{"uuid"},
			},
		},
		[]map[string]any{
			{
				"name": "uuid_unique", "type": "UNIQUENESS",
				"labelsOrTypes": []any{"Function"}, "properties": []any{"uuid"},
			},
		},
	)

	schema, err := introspector.Introspect(context.Background())
	require.NoError(t, err)

	require.Len(t, schema.Nodes, 2)
	assert.Equal(t, "File", schema.Nodes[0].Label)

	fn := schema.Nodes[1]
	require.Len(t, fn.Properties, 3)
	byName := map[string]PropertyInfo{}
	for _, p := range fn.Properties {
		assert.True(t, p.Nullable, "sampled properties are always nullable")
		byName[p.Name] = p
	}
	assert.Equal(t, []string{"string"}, byName["name"].Types)
	assert.Equal(t, []string{"integer"}, byName["start_line"].Types)

	require.Len(t, schema.Relationships, 2)
	assert.Equal(t, "CALLS", schema.Relationships[0].Type)

	require.Len(t, schema.Indexes, 1)
	assert.Equal(t, "uuid_lookup", schema.Indexes[0].Name)

	require.Len(t, schema.VectorIndexes, 1)
	vec := schema.VectorIndexes[0]
	assert.Equal(t, "function_embeddings", vec.Name)
	assert.Equal(t, 1536, vec.Dimensions, "configured metadata wins")
	assert.Equal(t, "cosine", vec.Similarity)

	require.Len(t, schema.Constraints, 1)
	assert.Equal(t, "uuid_unique", schema.Constraints[0].Name)
}

func TestIntrospector_VectorMetadataFromLiveIndex(t *testing.T) {
	introspector, client := newTestIntrospector(t, config.VectorConfig{})

	queueIntrospection(client, nil, nil, nil,
		[]map[string]any{
			{
				"name": "file_embeddings", "type": "VECTOR",
				"labelsOrTypes": []any{"File"}, "properties": []any{"embedding"},
				"options": map[string]any{
					"indexConfig": map[string]any{
						"vector.dimensions":          int64(768),
						"vector.similarity_function": "cosine",
					},
				},
			},
		},
		nil,
	)

	schema, err := introspector.Introspect(context.Background())
	require.NoError(t, err)

	require.Len(t, schema.VectorIndexes, 1)
	assert.Equal(t, 768, schema.VectorIndexes[0].Dimensions)
	assert.Equal(t, "cosine", schema.VectorIndexes[0].Similarity)
}

func TestIntrospector_ConfiguredIndexNotYetCreated(t *testing.T) {
	vectorCfg := config.VectorConfig{Indexes: []config.VectorIndexConfig{
		{Name: "function_embeddings", Label: "Function", Property: "embedding", Dimensions: 1536, Similarity: "cosine"},
	}}
	introspector, client := newTestIntrospector(t, vectorCfg)

	queueIntrospection(client, nil, nil, nil, nil, nil)

	schema, err := introspector.Introspect(context.Background())
	require.NoError(t, err)

	require.Len(t, schema.VectorIndexes, 1)
	assert.Equal(t, "function_embeddings", schema.VectorIndexes[0].Name)
	assert.Equal(t, "Function", schema.VectorIndexes[0].Label)
}

func TestIntrospector_QueryFailure(t *testing.T) {
	introspector, client := newTestIntrospector(t, config.VectorConfig{})
	client.SetQueryError(types.NewError(graph.ErrCodeGraphQueryFailed, "down"))

	_, err := introspector.Introspect(context.Background())
	require.Error(t, err)

	var atlasErr *types.AtlasError
	require.ErrorAs(t, err, &atlasErr)
	assert.Equal(t, ErrCodeIntrospectFailed, atlasErr.Code)
}
