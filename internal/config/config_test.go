package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Core.ParallelLimit)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, 500, cfg.Ingest.BatchSize)
	assert.Equal(t, 0.3, cfg.Query.FilterWeight)
	assert.Equal(t, 0.7, cfg.Query.SemanticWeight)
	assert.Equal(t, 25, cfg.Query.DefaultLimit)
	assert.Equal(t, 3, cfg.Query.MaxExpandDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Vector.Indexes)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestValidator_WeightSum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Query.FilterWeight = 0.5
	cfg.Query.SemanticWeight = 0.7

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidator_DimensionMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vector.Indexes[0].Dimensions = 384

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match embedding.dimensions")
}

func TestValidator_StructTags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing graph URI",
			mutate: func(c *Config) { c.Graph.URI = "" },
			want:   "graph.u_r_i",
		},
		{
			name:   "parallel limit too small",
			mutate: func(c *Config) { c.Core.ParallelLimit = 0 },
			want:   "core.parallel_limit",
		},
		{
			name:   "batch size over cap",
			mutate: func(c *Config) { c.Ingest.BatchSize = 1000 },
			want:   "ingest.batch_size",
		},
		{
			name:   "expand depth over cap",
			mutate: func(c *Config) { c.Query.MaxExpandDepth = 10 },
			want:   "query.max_expand_depth",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
graph:
  uri: bolt://graph.internal:7687
  username: neo4j
  password: secret
  max_connections: 20
  connection_timeout: 10s
ingest:
  batch_size: 250
  include:
    - "**/*.go"
query:
  filter_weight: 0.4
  semantic_weight: 0.6
  default_limit: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, "secret", cfg.Graph.Password)
	assert.Equal(t, 20, cfg.Graph.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.Graph.ConnectionTimeout)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
	assert.Equal(t, 0.4, cfg.Query.FilterWeight)
	assert.Equal(t, 0.6, cfg.Query.SemanticWeight)
	assert.Equal(t, 50, cfg.Query.DefaultLimit)

	// Untouched sections keep defaults
	assert.Equal(t, 3, cfg.Query.MaxExpandDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoader_EnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
graph:
  uri: bolt://localhost:7687
  username: neo4j
  password: ${CODEATLAS_TEST_GRAPH_PASSWORD}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CODEATLAS_TEST_GRAPH_PASSWORD", "s3cr3t")

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Graph.Password)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(NewValidator()).Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := NewLoader(NewValidator()).LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Graph.URI, cfg.Graph.URI)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("graph:\n  uri: bolt://other:7687\n  username: neo4j\n  password: pw\n"), 0o644))

		cfg, err := NewLoader(NewValidator()).LoadWithDefaults(path)
		require.NoError(t, err)
		assert.Equal(t, "bolt://other:7687", cfg.Graph.URI)
	})
}

func TestLoader_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
graph:
  uri: bolt://localhost:7687
  username: neo4j
  password: pw
query:
  filter_weight: 0.9
  semantic_weight: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := NewLoader(NewValidator()).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
