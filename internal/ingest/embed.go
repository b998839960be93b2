package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/embedding"
)

// embeddedVector is one computed embedding destined for a node property.
type embeddedVector struct {
	property string
	values   []float64
}

// embedTarget pairs an entity with one descriptor's source text. A label
// carrying several descriptors yields several targets per entity, one
// embedding property each.
type embedTarget struct {
	entity   Entity
	property string
	input    string
}

// sourceText resolves a descriptor's source field against an entity.
// Empty or "content" means the full entity content; anything else reads
// the matching entity property.
func sourceText(e Entity, field string) string {
	if field == "" || field == "content" {
		return e.Content
	}
	if v, ok := e.Properties[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// embedDiff computes embeddings for created and updated entities whose
// label carries vector index descriptors, one vector per descriptor.
// Failures are attributed per entity and the entity is still written,
// just without that embedding property.
func embedDiff(
	ctx context.Context,
	provider embedding.Provider,
	indexes []config.VectorIndexConfig,
	entities []Entity,
	logger *slog.Logger,
) (map[string][]embeddedVector, []EntityFailure) {
	descriptorsByLabel := make(map[string][]config.VectorIndexConfig, len(indexes))
	for _, idx := range indexes {
		descriptorsByLabel[idx.Label] = append(descriptorsByLabel[idx.Label], idx)
	}

	var targets []embedTarget
	for _, e := range entities {
		for _, idx := range descriptorsByLabel[e.Label] {
			text := sourceText(e, idx.SourceField)
			if text == "" {
				continue
			}
			property := idx.Property
			if property == "" {
				property = "embedding"
			}
			targets = append(targets, embedTarget{entity: e, property: property, input: text})
		}
	}
	if len(targets) == 0 || provider == nil {
		return nil, nil
	}

	inputs := make([]string, len(targets))
	for i, t := range targets {
		inputs[i] = t.input
	}

	vectors := make(map[string][]embeddedVector, len(targets))
	var failures []EntityFailure

	// EmbedBatch reports the first failing item; keep going past it so
	// one poisoned input doesn't cost the rest of the batch their
	// embeddings.
	offset := 0
	for offset < len(inputs) {
		embedded, err := provider.EmbedBatch(ctx, inputs[offset:])
		for i, vec := range embedded {
			t := targets[offset+i]
			uuid := t.entity.UUID()
			vectors[uuid] = append(vectors[uuid], embeddedVector{
				property: t.property,
				values:   vec,
			})
		}
		if err == nil {
			break
		}

		var batchErr *embedding.BatchError
		if !errors.As(err, &batchErr) {
			// Provider-level failure, nothing more to gain from retrying
			// the remainder this run.
			for _, t := range targets[offset+len(embedded):] {
				failures = append(failures, EntityFailure{
					EntityID: t.entity.UUID(),
					Stage:    StageWriting,
					Err:      err,
				})
			}
			break
		}

		failed := targets[offset+batchErr.Index]
		failures = append(failures, EntityFailure{
			EntityID: failed.entity.UUID(),
			Stage:    StageWriting,
			Err:      fmt.Errorf("embedding %q: %w", failed.property, batchErr),
		})
		logger.Warn("embedding failed, writing entity without embedding property",
			"entity", failed.entity.IdentityKey(),
			"property", failed.property,
			"error", batchErr)

		offset += batchErr.Index + 1
	}

	return vectors, failures
}
