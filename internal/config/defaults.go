package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/embedding"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	embeddingCfg := embedding.DefaultConfig()

	return &Config{
		Core: CoreConfig{
			HomeDir:       homeDir,
			ParallelLimit: 10,
			Timeout:       5 * time.Minute,
			Debug:         false,
		},
		Graph: GraphConfig{
			URI:                     "bolt://localhost:7687",
			Username:                "neo4j",
			Password:                "password",
			Database:                "",
			MaxConnections:          50,
			ConnectionTimeout:       30 * time.Second,
			MaxTransactionRetryTime: 30 * time.Second,
		},
		Embedding: embeddingCfg,
		Ingest: IngestConfig{
			BatchSize:     500,
			Include:       []string{"**/*.go"},
			Exclude:       []string{"**/vendor/**", "**/.git/**", "**/testdata/**"},
			EmbedOnIngest: true,
			WatchDebounce: 2 * time.Second,
		},
		Query: QueryConfig{
			FilterWeight:   0.3,
			SemanticWeight: 0.7,
			DefaultLimit:   25,
			MaxExpandDepth: 3,
			Timeout:        30 * time.Second,
		},
		Vector: VectorConfig{
			Indexes: []VectorIndexConfig{
				{
					Name:       "function_embeddings",
					Label:      "Function",
					Property:   "embedding",
					Dimensions: embeddingCfg.Dimensions,
					Similarity: "cosine",
				},
				{
					Name:       "file_embeddings",
					Label:      "File",
					Property:   "embedding",
					Dimensions: embeddingCfg.Dimensions,
					Similarity: "cosine",
				},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "",
		},
	}
}

// getDefaultHomeDir returns the default codeatlas home directory.
// It uses ~/.codeatlas or falls back to a temporary directory if user home
// cannot be determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codeatlas")
	}
	return filepath.Join(userHome, ".codeatlas")
}

// DefaultConfigPath returns the default config file path for a given home
// directory. An empty homeDir falls back to the default home.
func DefaultConfigPath(homeDir string) string {
	if homeDir == "" {
		homeDir = getDefaultHomeDir()
	}
	return filepath.Join(homeDir, "config.yaml")
}
