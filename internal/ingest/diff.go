package ingest

import (
	"context"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// snapshotEntry is the stored state of one entity from a prior run.
type snapshotEntry struct {
	hash  string
	label string
}

// DeletedEntity identifies a node present in the store but absent from
// the current parse.
type DeletedEntity struct {
	UUID     string
	Label    string
	PrevHash string
}

// Diff classifies parsed entities against the stored snapshot.
type Diff struct {
	Created   []Entity
	Updated   []Entity
	Deleted   []DeletedEntity
	Unchanged int

	// prevHashes maps updated entity uuids to their stored hash, for
	// change records.
	prevHashes map[string]string
}

// HasChanges reports whether anything needs writing.
func (d Diff) HasChanges() bool {
	return len(d.Created) > 0 || len(d.Updated) > 0 || len(d.Deleted) > 0
}

const snapshotCypher = `MATCH (n {project_id: $project_id})
WHERE n.content_hash IS NOT NULL
RETURN n.uuid AS uuid, n.content_hash AS content_hash, labels(n) AS labels`

// loadSnapshot reads the (uuid → content_hash) state of a project from
// the store. It is read fresh for every run: the pipeline keeps no
// in-memory state between runs.
func loadSnapshot(ctx context.Context, client graph.Client, projectID string) (map[string]snapshotEntry, error) {
	result, err := client.Query(ctx, snapshotCypher, map[string]any{"project_id": projectID})
	if err != nil {
		return nil, types.WrapError(ErrCodeDiffFailed, "failed to load ingestion snapshot", err)
	}

	snapshot := make(map[string]snapshotEntry, len(result.Records))
	for _, rec := range result.Records {
		uuid, ok := rec["uuid"].(string)
		if !ok || uuid == "" {
			continue
		}
		entry := snapshotEntry{}
		if hash, ok := rec["content_hash"].(string); ok {
			entry.hash = hash
		}
		if labels := toStringSlice(rec["labels"]); len(labels) > 0 {
			entry.label = labels[0]
		}
		snapshot[uuid] = entry
	}
	return snapshot, nil
}

// diffEntities classifies entities as created, updated, deleted or
// unchanged against the snapshot.
func diffEntities(entities []Entity, snapshot map[string]snapshotEntry) Diff {
	diff := Diff{prevHashes: make(map[string]string)}
	seen := make(map[string]struct{}, len(entities))

	for _, e := range entities {
		uuid := e.UUID()
		seen[uuid] = struct{}{}

		entry, exists := snapshot[uuid]
		switch {
		case !exists:
			diff.Created = append(diff.Created, e)
		case entry.hash != e.ContentHash():
			diff.Updated = append(diff.Updated, e)
			diff.prevHashes[uuid] = entry.hash
		default:
			diff.Unchanged++
		}
	}

	for uuid, entry := range snapshot {
		if _, ok := seen[uuid]; !ok {
			diff.Deleted = append(diff.Deleted, DeletedEntity{
				UUID:     uuid,
				Label:    entry.label,
				PrevHash: entry.hash,
			})
		}
	}

	return diff
}

func toStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
