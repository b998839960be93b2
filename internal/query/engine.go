package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/types"
	"github.com/codeatlas-ai/codeatlas/internal/vector"
)

// Result is one scored node returned by a query.
type Result struct {
	UUID       string
	Labels     []string
	Properties map[string]any

	// Score is the combined score: filterWeight*FilterScore +
	// semanticWeight*SemanticScore.
	Score         float64
	FilterScore   float64
	SemanticScore float64

	// Related holds expansion hits, when the Spec requested any.
	Related []Related
}

// Related is a node reached through relationship expansion.
type Related struct {
	Entity           Entity
	RelationshipType string
	Direction        Direction
	Distance         int
}

// Entity is the node payload of a Related hit.
type Entity struct {
	UUID       string
	Labels     []string
	Properties map[string]any
}

// ResultSet carries query results plus any non-fatal warnings produced
// while executing, such as a semantic path degradation.
type ResultSet struct {
	Results  []Result
	Warnings []string
}

// Engine executes query Specs against the graph.
type Engine interface {
	// Execute runs the Spec and returns scored, ordered, paginated results.
	Execute(ctx context.Context, spec Spec) (*ResultSet, error)

	// Count returns how many nodes match the Spec's filter clauses,
	// ignoring semantic clauses, ordering and pagination.
	Count(ctx context.Context, spec Spec) (int64, error)

	// Explain returns the database's query plan for the Spec's filter
	// query without executing it.
	Explain(ctx context.Context, spec Spec) (*graph.Plan, error)
}

// engine is the default Engine implementation.
type engine struct {
	client graph.Client
	search *vector.SearchService
	cfg    config.QueryConfig
	logger *slog.Logger

	// maxConcurrentExpansions bounds parallel expansion traversals.
	maxConcurrentExpansions int
}

// NewEngine creates the default query engine. search may be nil, in which
// case Specs with a semantic clause fail validation at Execute.
func NewEngine(client graph.Client, search *vector.SearchService, cfg config.QueryConfig, logger *slog.Logger) Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{
		client:                  client,
		search:                  search,
		cfg:                     cfg,
		logger:                  logger,
		maxConcurrentExpansions: 10,
	}
}

func (e *engine) Execute(ctx context.Context, spec Spec) (*ResultSet, error) {
	if err := spec.Validate(e.cfg.MaxExpandDepth); err != nil {
		return nil, err
	}
	if spec.HasSemantic() && e.search == nil {
		return nil, types.NewError(ErrCodeInvalidSpec,
			"semantic clause requires a configured embedding provider")
	}

	weights := Weights{Filter: e.cfg.FilterWeight, Semantic: e.cfg.SemanticWeight}
	if spec.weights != nil {
		weights = *spec.weights
	}

	set := &ResultSet{}
	var results []Result

	switch {
	case spec.HasSemantic() && !spec.HasFilters():
		semantic, err := e.runSemantic(ctx, spec)
		if err != nil {
			return nil, err
		}
		// Nothing to merge against, so the score is the index similarity
		// itself. Weighting only applies when filter hits compete.
		results = semantic
		for i := range results {
			results[i].Score = results[i].SemanticScore
		}

	case !spec.HasSemantic():
		filter, err := e.runFilter(ctx, spec)
		if err != nil {
			return nil, err
		}
		results = mergeResults(filter, nil, weights)

	default:
		filter, err := e.runFilter(ctx, spec)
		if err != nil {
			return nil, err
		}
		semantic, err := e.runSemantic(ctx, spec)
		if err != nil {
			// The filter side already succeeded; degrade to filter-only
			// rather than failing the whole query.
			e.logger.Warn("semantic search failed, degrading to filter-only results",
				"label", spec.label,
				"error", err)
			set.Warnings = append(set.Warnings,
				fmt.Sprintf("semantic search unavailable, results are filter-only: %v", err))
			semantic = nil
		}
		results = mergeResults(filter, semantic, weights)
	}

	// Expansion precedes reranking so strategies can weigh the related
	// entities each result carries.
	if len(spec.expansions) > 0 {
		if err := e.expand(ctx, spec, results); err != nil {
			return nil, err
		}
	}

	for _, r := range spec.rerankers {
		var err error
		results, err = r.Rerank(ctx, results)
		if err != nil {
			return nil, types.WrapError(ErrCodeExecutionFailed, "reranker failed", err)
		}
	}

	if len(spec.order) > 0 {
		sortByOrder(results, spec.order)
	} else {
		sortByScore(results)
	}

	set.Results = paginate(results, spec.offset, e.effectiveLimit(spec))
	return set, nil
}

func (e *engine) Count(ctx context.Context, spec Spec) (int64, error) {
	if err := spec.Validate(e.cfg.MaxExpandDepth); err != nil {
		return 0, err
	}

	c, err := compileCount(spec)
	if err != nil {
		return 0, err
	}

	result, err := e.client.Query(ctx, c.cypher, c.params)
	if err != nil {
		return 0, types.WrapError(ErrCodeExecutionFailed, "count query failed", err)
	}
	if len(result.Records) == 0 {
		return 0, nil
	}

	count, ok := result.Records[0]["count"].(int64)
	if !ok {
		return 0, types.NewError(ErrCodeExecutionFailed,
			fmt.Sprintf("unexpected count value %v", result.Records[0]["count"]))
	}
	return count, nil
}

func (e *engine) Explain(ctx context.Context, spec Spec) (*graph.Plan, error) {
	if err := spec.Validate(e.cfg.MaxExpandDepth); err != nil {
		return nil, err
	}

	c, err := compileFilter(spec)
	if err != nil {
		return nil, err
	}

	plan, err := e.client.Explain(ctx, c.cypher, c.params)
	if err != nil {
		return nil, types.WrapError(ErrCodeExecutionFailed, "explain failed", err)
	}
	return &plan, nil
}

// runFilter executes the compiled MATCH/WHERE query. Every hit gets a
// filter score of 1.0.
func (e *engine) runFilter(ctx context.Context, spec Spec) ([]Result, error) {
	c, err := compileFilter(spec)
	if err != nil {
		return nil, err
	}

	result, err := e.client.Query(ctx, c.cypher, c.params)
	if err != nil {
		return nil, types.WrapError(ErrCodeExecutionFailed, "filter query failed", err)
	}

	results := make([]Result, 0, len(result.Records))
	for _, rec := range result.Records {
		uuid, ok := rec["uuid"].(string)
		if !ok || uuid == "" {
			continue
		}
		results = append(results, Result{
			UUID:        uuid,
			Labels:      toStringSlice(rec["labels"]),
			Properties:  toPropMap(rec["props"]),
			FilterScore: 1.0,
		})
	}

	e.logger.Debug("filter query executed",
		"label", spec.label,
		"predicates", len(spec.predicates),
		"hits", len(results))

	return results, nil
}

// runSemantic executes the Spec's semantic clause through the vector
// search service. Candidates carrying labels that exclude the Spec's
// target label are dropped.
func (e *engine) runSemantic(ctx context.Context, spec Spec) ([]Result, error) {
	opts := vector.Options{
		IndexName: spec.semantic.VectorIndex,
		TopK:      spec.semantic.TopK,
		MinScore:  spec.semantic.MinScore,
	}
	if opts.TopK == 0 {
		opts.TopK = e.cfg.DefaultLimit
	}

	matches, err := e.search.Search(ctx, spec.semanticText, opts)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.UUID == "" {
			e.logger.Warn("dropping semantic match without uuid, name matching is not supported",
				"index", spec.semantic.VectorIndex,
				"score", m.Score)
			continue
		}
		if len(m.Labels) > 0 && !containsLabel(m.Labels, spec.label) {
			continue
		}
		results = append(results, Result{
			UUID:          m.UUID,
			Labels:        m.Labels,
			Properties:    m.Properties,
			SemanticScore: m.Score,
		})
	}

	e.logger.Debug("semantic search executed",
		"index", spec.semantic.VectorIndex,
		"candidates", len(matches),
		"hits", len(results))

	return results, nil
}

// expand runs every expansion clause for every result, bounded by a
// semaphore, and attaches deduplicated related entities in place.
func (e *engine) expand(ctx context.Context, spec Spec, results []Result) error {
	type job struct {
		resultIdx int
		clause    expandClause
	}

	jobs := make([]job, 0, len(results)*len(spec.expansions))
	for i := range results {
		for _, clause := range spec.expansions {
			jobs = append(jobs, job{resultIdx: i, clause: clause})
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, e.maxConcurrentExpansions)

	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			related, err := e.expandOne(ctx, results[j.resultIdx].UUID, j.clause)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[j.resultIdx].Related = append(results[j.resultIdx].Related, related...)
		}(j)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	for i := range results {
		results[i].Related = dedupeRelated(results[i].Related)
	}
	return nil
}

// expandOne traverses one relationship clause from a single node.
func (e *engine) expandOne(ctx context.Context, uuid string, clause expandClause) ([]Related, error) {
	c, err := compileExpand(clause)
	if err != nil {
		return nil, err
	}
	c.params["uuid"] = uuid

	result, err := e.client.Query(ctx, c.cypher, c.params)
	if err != nil {
		return nil, types.WrapError(ErrCodeExpansionFailed,
			fmt.Sprintf("expansion of %s failed", clause.relType), err)
	}

	related := make([]Related, 0, len(result.Records))
	for _, rec := range result.Records {
		relUUID, ok := rec["uuid"].(string)
		if !ok || relUUID == "" || relUUID == uuid {
			continue
		}
		distance := 1
		if d, ok := rec["distance"].(int64); ok {
			distance = int(d)
		}
		related = append(related, Related{
			Entity: Entity{
				UUID:       relUUID,
				Labels:     toStringSlice(rec["labels"]),
				Properties: toPropMap(rec["props"]),
			},
			RelationshipType: clause.relType,
			Direction:        clause.opts.Direction,
			Distance:         distance,
		})
	}
	return related, nil
}

// effectiveLimit resolves the Spec's limit against the configured default.
func (e *engine) effectiveLimit(spec Spec) int {
	if spec.limit > 0 {
		return spec.limit
	}
	return e.cfg.DefaultLimit
}

func paginate(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return []Result{}
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// dedupeRelated keeps one entry per (uuid, relationship type) pair,
// preferring the shortest distance.
func dedupeRelated(related []Related) []Related {
	if len(related) <= 1 {
		return related
	}

	type key struct {
		uuid    string
		relType string
	}
	seen := make(map[key]int, len(related))
	deduped := make([]Related, 0, len(related))

	for _, r := range related {
		k := key{uuid: r.Entity.UUID, relType: r.RelationshipType}
		if idx, ok := seen[k]; ok {
			if r.Distance < deduped[idx].Distance {
				deduped[idx] = r
			}
			continue
		}
		seen[k] = len(deduped)
		deduped = append(deduped, r)
	}
	return deduped
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
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

func toPropMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
