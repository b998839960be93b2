package ingest

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// DefaultBatchSize caps UNWIND batch sizes when the config leaves it unset.
const DefaultBatchSize = 500

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// writer issues the batched graph mutations for a diff.
type writer struct {
	client    graph.Client
	batchSize int
	projectID string
}

func newWriter(client graph.Client, batchSize int, projectID string) *writer {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &writer{client: client, batchSize: batchSize, projectID: projectID}
}

// writeNodes upserts created and updated entities, batched per label.
// MERGE on uuid keeps re-runs idempotent: the same source always maps
// to the same node.
func (w *writer) writeNodes(ctx context.Context, entities []Entity, embeddings map[string][]embeddedVector) (int, error) {
	byLabel := make(map[string][]map[string]any)
	for _, e := range entities {
		byLabel[e.Label] = append(byLabel[e.Label], w.nodeRow(e, embeddings))
	}

	written := 0
	for _, label := range sortedKeys(byLabel) {
		if !identifierPattern.MatchString(label) {
			return written, types.NewError(ErrCodeWriteFailed,
				fmt.Sprintf("invalid node label %q", label))
		}

		cypher := fmt.Sprintf(
			"UNWIND $batch AS row MERGE (n:%s {uuid: row.uuid}) SET n += row.props", label)

		for _, batch := range chunkRows(byLabel[label], w.batchSize) {
			if _, err := w.client.WriteQuery(ctx, cypher, map[string]any{"batch": batch}); err != nil {
				return written, types.WrapError(ErrCodeWriteFailed,
					fmt.Sprintf("failed to upsert %s batch", label), err)
			}
			written += len(batch)
		}
	}
	return written, nil
}

// writeRelationships merges edges, batched per relationship type. Runs
// only after every node batch has completed so endpoints exist.
func (w *writer) writeRelationships(ctx context.Context, relationships []Relationship) (int, error) {
	byType := make(map[string][]map[string]any)
	for _, r := range relationships {
		byType[r.Type] = append(byType[r.Type], map[string]any{
			"from":  r.FromUUID,
			"to":    r.ToUUID,
			"props": nonNilProps(r.Properties),
		})
	}

	written := 0
	for _, relType := range sortedKeys(byType) {
		if !identifierPattern.MatchString(relType) {
			return written, types.NewError(ErrCodeWriteFailed,
				fmt.Sprintf("invalid relationship type %q", relType))
		}

		cypher := fmt.Sprintf(
			"UNWIND $batch AS row "+
				"MATCH (a {uuid: row.from}) MATCH (b {uuid: row.to}) "+
				"MERGE (a)-[r:%s]->(b) SET r += row.props", relType)

		for _, batch := range chunkRows(byType[relType], w.batchSize) {
			if _, err := w.client.WriteQuery(ctx, cypher, map[string]any{"batch": batch}); err != nil {
				return written, types.WrapError(ErrCodeWriteFailed,
					fmt.Sprintf("failed to merge %s batch", relType), err)
			}
			written += len(batch)
		}
	}
	return written, nil
}

// deleteNodes removes stale nodes, batched per label, DETACH DELETE so
// dangling edges go with them.
func (w *writer) deleteNodes(ctx context.Context, deleted []DeletedEntity) (int, error) {
	byLabel := make(map[string][]string)
	for _, d := range deleted {
		byLabel[d.Label] = append(byLabel[d.Label], d.UUID)
	}

	removed := 0
	for _, label := range sortedKeys(byLabel) {
		if !identifierPattern.MatchString(label) {
			return removed, types.NewError(ErrCodeWriteFailed,
				fmt.Sprintf("invalid node label %q", label))
		}

		cypher := fmt.Sprintf(
			"UNWIND $uuids AS uuid MATCH (n:%s {uuid: uuid}) DETACH DELETE n", label)

		uuids := byLabel[label]
		for start := 0; start < len(uuids); start += w.batchSize {
			end := min(start+w.batchSize, len(uuids))
			if _, err := w.client.WriteQuery(ctx, cypher, map[string]any{"uuids": uuids[start:end]}); err != nil {
				return removed, types.WrapError(ErrCodeWriteFailed,
					fmt.Sprintf("failed to delete %s batch", label), err)
			}
			removed += end - start
		}
	}
	return removed, nil
}

// nodeRow flattens an entity into an UNWIND row.
func (w *writer) nodeRow(e Entity, embeddings map[string][]embeddedVector) map[string]any {
	uuid := e.UUID()
	props := map[string]any{
		"uuid":         uuid,
		"path":         e.Path,
		"kind":         e.Kind,
		"content_hash": e.ContentHash(),
		"project_id":   w.projectID,
	}
	if e.Name != "" {
		props["name"] = e.Name
	}
	if e.StartLine > 0 {
		props["start_line"] = e.StartLine
		props["end_line"] = e.EndLine
	}
	for k, v := range e.Properties {
		props[k] = v
	}
	for _, vec := range embeddings[uuid] {
		props[vec.property] = vec.values
	}
	return map[string]any{"uuid": uuid, "props": props}
}

func chunkRows(rows []map[string]any, size int) [][]map[string]any {
	var chunks [][]map[string]any
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonNilProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	return props
}
