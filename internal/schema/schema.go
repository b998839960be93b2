// Package schema discovers what a code graph actually contains: labels,
// relationship types, per-label property shapes, indexes and constraints.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Schema error codes
const (
	ErrCodeIntrospectFailed types.ErrorCode = "SCHEMA_INTROSPECT_FAILED"
)

// sampleSize bounds how many nodes per label are inspected for property
// inference.
const sampleSize = 100

// PropertyInfo describes one observed node property. Sampling cannot
// prove a property is always present, so every property is nullable.
type PropertyInfo struct {
	Name     string   `yaml:"name"`
	Types    []string `yaml:"types"`
	Nullable bool     `yaml:"nullable"`
}

// NodeSchema describes one node label.
type NodeSchema struct {
	Label      string         `yaml:"label"`
	Properties []PropertyInfo `yaml:"properties,omitempty"`
}

// RelationshipSchema describes one relationship type.
type RelationshipSchema struct {
	Type string `yaml:"type"`
}

// IndexInfo describes one database index.
type IndexInfo struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Labels     []string `yaml:"labels,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
}

// ConstraintInfo describes one database constraint.
type ConstraintInfo struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Labels     []string `yaml:"labels,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
}

// VectorIndexInfo describes one vector index, with dimensions and
// similarity taken from configuration when available.
type VectorIndexInfo struct {
	Name       string `yaml:"name"`
	Label      string `yaml:"label"`
	Property   string `yaml:"property"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	Similarity string `yaml:"similarity,omitempty"`
}

// Schema is the discovered shape of the graph.
type Schema struct {
	Nodes         []NodeSchema         `yaml:"nodes"`
	Relationships []RelationshipSchema `yaml:"relationships"`
	Indexes       []IndexInfo          `yaml:"indexes,omitempty"`
	Constraints   []ConstraintInfo     `yaml:"constraints,omitempty"`
	VectorIndexes []VectorIndexInfo    `yaml:"vector_indexes,omitempty"`
}

// Introspector reads schema information from the live graph.
type Introspector struct {
	client    graph.Client
	vectorCfg config.VectorConfig
	logger    *slog.Logger
}

// NewIntrospector creates an introspector. vectorCfg supplies preferred
// vector index metadata; live indexes fill in the rest.
func NewIntrospector(client graph.Client, vectorCfg config.VectorConfig, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Introspector{client: client, vectorCfg: vectorCfg, logger: logger}
}

// Introspect discovers the full schema.
func (i *Introspector) Introspect(ctx context.Context) (*Schema, error) {
	labels, err := i.labels(ctx)
	if err != nil {
		return nil, err
	}

	schema := &Schema{}
	for _, label := range labels {
		props, err := i.sampleProperties(ctx, label)
		if err != nil {
			return nil, err
		}
		schema.Nodes = append(schema.Nodes, NodeSchema{Label: label, Properties: props})
	}

	relTypes, err := i.relationshipTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, relType := range relTypes {
		schema.Relationships = append(schema.Relationships, RelationshipSchema{Type: relType})
	}

	schema.Indexes, schema.VectorIndexes, err = i.indexes(ctx)
	if err != nil {
		return nil, err
	}

	schema.Constraints, err = i.constraints(ctx)
	if err != nil {
		return nil, err
	}

	return schema, nil
}

func (i *Introspector) labels(ctx context.Context) ([]string, error) {
	result, err := i.client.Query(ctx, "CALL db.labels() YIELD label RETURN label ORDER BY label", nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeIntrospectFailed, "failed to list labels", err)
	}

	labels := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		if label, ok := rec["label"].(string); ok && label != "" {
			labels = append(labels, label)
		}
	}
	return labels, nil
}

func (i *Introspector) relationshipTypes(ctx context.Context) ([]string, error) {
	result, err := i.client.Query(ctx,
		"CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType ORDER BY relationshipType", nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeIntrospectFailed, "failed to list relationship types", err)
	}

	relTypes := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		if relType, ok := rec["relationshipType"].(string); ok && relType != "" {
			relTypes = append(relTypes, relType)
		}
	}
	return relTypes, nil
}

// sampleProperties infers the property shape of a label from a bounded
// node sample.
func (i *Introspector) sampleProperties(ctx context.Context, label string) ([]PropertyInfo, error) {
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN properties(n) AS props LIMIT %d", label, sampleSize)
	result, err := i.client.Query(ctx, cypher, nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeIntrospectFailed,
			fmt.Sprintf("failed to sample label %s", label), err)
	}

	typesByProp := make(map[string]map[string]struct{})
	for _, rec := range result.Records {
		props, ok := rec["props"].(map[string]any)
		if !ok {
			continue
		}
		for name, value := range props {
			if typesByProp[name] == nil {
				typesByProp[name] = make(map[string]struct{})
			}
			typesByProp[name][propertyType(value)] = struct{}{}
		}
	}

	infos := make([]PropertyInfo, 0, len(typesByProp))
	for _, name := range sortedKeys(typesByProp) {
		observed := make([]string, 0, len(typesByProp[name]))
		for t := range typesByProp[name] {
			observed = append(observed, t)
		}
		sort.Strings(observed)
		infos = append(infos, PropertyInfo{Name: name, Types: observed, Nullable: true})
	}
	return infos, nil
}

// indexes lists all indexes, separating vector indexes out with their
// metadata. Configured descriptors win over live index options.
func (i *Introspector) indexes(ctx context.Context) ([]IndexInfo, []VectorIndexInfo, error) {
	result, err := i.client.Query(ctx, "SHOW INDEXES", nil)
	if err != nil {
		return nil, nil, types.WrapError(ErrCodeIntrospectFailed, "failed to list indexes", err)
	}

	configured := make(map[string]config.VectorIndexConfig, len(i.vectorCfg.Indexes))
	for _, idx := range i.vectorCfg.Indexes {
		configured[idx.Name] = idx
	}

	var indexes []IndexInfo
	var vectorIndexes []VectorIndexInfo
	seenVector := make(map[string]struct{})

	for _, rec := range result.Records {
		info := IndexInfo{
			Name:       stringValue(rec["name"]),
			Type:       stringValue(rec["type"]),
			Labels:     toStringSlice(rec["labelsOrTypes"]),
			Properties: toStringSlice(rec["properties"]),
		}
		if info.Name == "" {
			continue
		}

		if info.Type == "VECTOR" {
			vec := VectorIndexInfo{Name: info.Name}
			if len(info.Labels) > 0 {
				vec.Label = info.Labels[0]
			}
			if len(info.Properties) > 0 {
				vec.Property = info.Properties[0]
			}
			if cfg, ok := configured[info.Name]; ok {
				vec.Dimensions = cfg.Dimensions
				vec.Similarity = cfg.Similarity
			} else {
				vec.Dimensions, vec.Similarity = vectorOptions(rec["options"])
			}
			vectorIndexes = append(vectorIndexes, vec)
			seenVector[info.Name] = struct{}{}
			continue
		}

		indexes = append(indexes, info)
	}

	// Configured indexes the database has not created yet still show up,
	// so the schema output matches what ingestion will ensure.
	for _, idx := range i.vectorCfg.Indexes {
		if _, ok := seenVector[idx.Name]; ok {
			continue
		}
		vectorIndexes = append(vectorIndexes, VectorIndexInfo{
			Name:       idx.Name,
			Label:      idx.Label,
			Property:   idx.Property,
			Dimensions: idx.Dimensions,
			Similarity: idx.Similarity,
		})
	}

	sort.Slice(vectorIndexes, func(a, b int) bool {
		return vectorIndexes[a].Name < vectorIndexes[b].Name
	})

	return indexes, vectorIndexes, nil
}

func (i *Introspector) constraints(ctx context.Context) ([]ConstraintInfo, error) {
	result, err := i.client.Query(ctx, "SHOW CONSTRAINTS", nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeIntrospectFailed, "failed to list constraints", err)
	}

	var constraints []ConstraintInfo
	for _, rec := range result.Records {
		info := ConstraintInfo{
			Name:       stringValue(rec["name"]),
			Type:       stringValue(rec["type"]),
			Labels:     toStringSlice(rec["labelsOrTypes"]),
			Properties: toStringSlice(rec["properties"]),
		}
		if info.Name != "" {
			constraints = append(constraints, info)
		}
	}
	return constraints, nil
}

// vectorOptions digs dimensions and similarity out of a SHOW INDEXES
// options map.
func vectorOptions(v any) (int, string) {
	options, ok := v.(map[string]any)
	if !ok {
		return 0, ""
	}
	indexConfig, ok := options["indexConfig"].(map[string]any)
	if !ok {
		return 0, ""
	}

	dimensions := 0
	switch d := indexConfig["vector.dimensions"].(type) {
	case int64:
		dimensions = int(d)
	case float64:
		dimensions = int(d)
	}
	similarity, _ := indexConfig["vector.similarity_function"].(string)
	return dimensions, similarity
}

func propertyType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64, int:
		return "integer"
	case float64:
		return "float"
	case bool:
		return "boolean"
	case []any, []string, []float64:
		return "list"
	case map[string]any:
		return "map"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
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

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
