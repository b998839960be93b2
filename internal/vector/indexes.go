package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// EnsureIndexes creates every configured vector index if it does not already
// exist. Index creation is idempotent; re-running against an existing index
// is a no-op.
func EnsureIndexes(ctx context.Context, client graph.Client, cfg config.VectorConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, idx := range cfg.Indexes {
		property := idx.Property
		if property == "" {
			property = "embedding"
		}
		similarity := idx.Similarity
		if similarity == "" {
			similarity = "cosine"
		}

		cypher := fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS
FOR (n:%s) ON (n.%s)
OPTIONS {indexConfig: {
  `+"`vector.dimensions`"+`: $dimensions,
  `+"`vector.similarity_function`"+`: $similarity
}}`, idx.Name, idx.Label, property)

		params := map[string]any{
			"dimensions": idx.Dimensions,
			"similarity": similarity,
		}

		if _, err := client.WriteQuery(ctx, cypher, params); err != nil {
			return types.WrapError(ErrCodeIndexCreation,
				fmt.Sprintf("failed to create vector index %q", idx.Name), err)
		}

		logger.Info("vector index ensured",
			"index", idx.Name,
			"label", idx.Label,
			"dimensions", idx.Dimensions,
			"similarity", similarity)
	}

	return nil
}
