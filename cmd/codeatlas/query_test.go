package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas-ai/codeatlas/internal/query"
)

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		raw       string
		wantOp    query.Op
		wantField string
		wantValue any
	}{
		{"name=Connect", query.OpEq, "name", "Connect"},
		{"path=~internal", query.OpContains, "path", "internal"},
		{"name^=New", query.OpHasPrefix, "name", "New"},
		{"path$=.go", query.OpHasSuffix, "path", ".go"},
		{"start_line>10", query.OpGt, "start_line", int64(10)},
		{"start_line>=10", query.OpGte, "start_line", int64(10)},
		{"end_line<200", query.OpLt, "end_line", int64(200)},
		{"end_line<=200", query.OpLte, "end_line", int64(200)},
		{"exported=true", query.OpEq, "exported", true},
		{"score=0.5", query.OpEq, "score", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := parsePredicate(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOp, p.Op)
			assert.Equal(t, tt.wantField, p.Field)
			assert.Equal(t, tt.wantValue, p.Value)
		})
	}
}

func TestParsePredicate_Invalid(t *testing.T) {
	for _, raw := range []string{"nonsense", "=value", ""} {
		_, err := parsePredicate(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "Connect", parseValue("Connect"))
}

func TestBuildSpec(t *testing.T) {
	saved := queryFlags
	t.Cleanup(func() { queryFlags = saved })

	queryFlags.where = []string{"name=Connect", "path=~internal"}
	queryFlags.semantic = "retry logic"
	queryFlags.index = "function_embeddings"
	queryFlags.expand = []string{"CALLS"}
	queryFlags.depth = 2
	queryFlags.direction = "outgoing"
	queryFlags.limit = 10

	spec, err := buildSpec("Function")
	require.NoError(t, err)

	assert.True(t, spec.HasFilters())
	assert.True(t, spec.HasSemantic())
	assert.NoError(t, spec.Validate(3))
}
