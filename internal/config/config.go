package config

import (
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/embedding"
)

// Config is the root configuration for codeatlas.
type Config struct {
	Core      CoreConfig       `mapstructure:"core" yaml:"core" validate:"required"`
	Graph     GraphConfig      `mapstructure:"graph" yaml:"graph" validate:"required"`
	Embedding embedding.Config `mapstructure:"embedding" yaml:"embedding"`
	Ingest    IngestConfig     `mapstructure:"ingest" yaml:"ingest"`
	Query     QueryConfig      `mapstructure:"query" yaml:"query"`
	Vector    VectorConfig     `mapstructure:"vector" yaml:"vector"`
	Logging   LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Tracing   TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir       string        `mapstructure:"home_dir" yaml:"home_dir"`
	ParallelLimit int           `mapstructure:"parallel_limit" yaml:"parallel_limit" validate:"min=1,max=100"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1s"`
	Debug         bool          `mapstructure:"debug" yaml:"debug"`
}

// GraphConfig contains Neo4j connection settings.
type GraphConfig struct {
	URI                     string        `mapstructure:"uri" yaml:"uri" validate:"required"`
	Username                string        `mapstructure:"username" yaml:"username" validate:"required"`
	Password                string        `mapstructure:"password" yaml:"password" validate:"required"`
	Database                string        `mapstructure:"database" yaml:"database"`
	MaxConnections          int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=200"`
	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout" validate:"min=1s"`
	MaxTransactionRetryTime time.Duration `mapstructure:"max_transaction_retry_time" yaml:"max_transaction_retry_time"`
}

// IngestConfig contains source tree ingestion settings.
type IngestConfig struct {
	// BatchSize caps how many rows go into a single UNWIND write.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"min=1,max=500"`

	// Include is the set of glob patterns selecting source files.
	// Patterns support ** via doublestar matching.
	Include []string `mapstructure:"include" yaml:"include"`

	// Exclude is the set of glob patterns filtering files out.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`

	// EmbedOnIngest controls whether embeddings are generated during ingestion.
	EmbedOnIngest bool `mapstructure:"embed_on_ingest" yaml:"embed_on_ingest"`

	// WatchDebounce is the quiet period before a filesystem change triggers
	// a re-ingest in watch mode.
	WatchDebounce time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce"`
}

// QueryConfig contains query engine settings.
type QueryConfig struct {
	// FilterWeight is the rerank weight for graph filter scores.
	FilterWeight float64 `mapstructure:"filter_weight" yaml:"filter_weight" validate:"min=0,max=1"`

	// SemanticWeight is the rerank weight for vector similarity scores.
	SemanticWeight float64 `mapstructure:"semantic_weight" yaml:"semantic_weight" validate:"min=0,max=1"`

	// DefaultLimit caps result sets when the caller does not set one.
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit" validate:"min=1"`

	// MaxExpandDepth bounds relationship expansion depth.
	MaxExpandDepth int `mapstructure:"max_expand_depth" yaml:"max_expand_depth" validate:"min=1,max=5"`

	// Timeout bounds a single query execution.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// VectorConfig contains vector index settings.
type VectorConfig struct {
	// Indexes maps node labels to their vector index definitions.
	Indexes []VectorIndexConfig `mapstructure:"indexes" yaml:"indexes"`
}

// VectorIndexConfig describes a single vector index in the graph store.
type VectorIndexConfig struct {
	// Name is the index name used in db.index.vector.queryNodes calls.
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// Label is the node label the index covers.
	Label string `mapstructure:"label" yaml:"label" validate:"required"`

	// Property is the node property holding the embedding.
	Property string `mapstructure:"property" yaml:"property"`

	// SourceField names the entity field whose text is embedded. Empty or
	// "content" embeds the full entity content; any other value reads the
	// matching entity property. Several descriptors may target the same
	// label with different source fields (signature vs. full body).
	SourceField string `mapstructure:"source_field" yaml:"source_field"`

	// Dimensions is the embedding dimensionality.
	Dimensions int `mapstructure:"dimensions" yaml:"dimensions" validate:"min=1"`

	// Similarity is the similarity function: "cosine" or "euclidean".
	// Defaults to cosine when omitted.
	Similarity string `mapstructure:"similarity" yaml:"similarity" validate:"omitempty,oneof=cosine euclidean"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}
