package query

import (
	"context"
	"sort"
)

// Reranker reorders (and may drop or rescore) results after the engine
// has scored and merged them. Rerankers attached to a Spec run in
// declaration order, each receiving the previous one's output.
type Reranker interface {
	Rerank(ctx context.Context, results []Result) ([]Result, error)
}

// RerankerFunc adapts a function to the Reranker interface.
type RerankerFunc func(ctx context.Context, results []Result) ([]Result, error)

func (f RerankerFunc) Rerank(ctx context.Context, results []Result) ([]Result, error) {
	return f(ctx, results)
}

// TopK returns a reranker that truncates results to the k highest-scored.
func TopK(k int) Reranker {
	return RerankerFunc(func(_ context.Context, results []Result) ([]Result, error) {
		sortByScore(results)
		if k > 0 && len(results) > k {
			results = results[:k]
		}
		return results, nil
	})
}

// MinScore returns a reranker that drops results scoring below threshold.
func MinScore(threshold float64) Reranker {
	return RerankerFunc(func(_ context.Context, results []Result) ([]Result, error) {
		filtered := make([]Result, 0, len(results))
		for _, r := range results {
			if r.Score >= threshold {
				filtered = append(filtered, r)
			}
		}
		return filtered, nil
	})
}

// mergeResults combines filter and semantic hits keyed strictly by uuid
// and applies the weighted score law. Hits present on only one side keep
// that side's contribution; nothing is dropped here.
func mergeResults(filterHits, semanticHits []Result, w Weights) []Result {
	merged := make(map[string]*Result, len(filterHits)+len(semanticHits))
	order := make([]string, 0, len(filterHits)+len(semanticHits))

	for _, r := range filterHits {
		r := r
		merged[r.UUID] = &r
		order = append(order, r.UUID)
	}

	for _, r := range semanticHits {
		if existing, ok := merged[r.UUID]; ok {
			existing.SemanticScore = r.SemanticScore
			continue
		}
		r := r
		merged[r.UUID] = &r
		order = append(order, r.UUID)
	}

	results := make([]Result, 0, len(merged))
	for _, uuid := range order {
		r := merged[uuid]
		r.Score = w.Filter*r.FilterScore + w.Semantic*r.SemanticScore
		results = append(results, *r)
	}

	return results
}

// sortByScore orders results by score descending. The sort is stable so
// equal-scored results keep their merge order across runs.
func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// sortByOrder applies the Spec's OrderBy clauses over node properties.
func sortByOrder(results []Result, order []orderClause) {
	sort.SliceStable(results, func(i, j int) bool {
		for _, o := range order {
			cmp := compareValues(results[i].Properties[o.field], results[j].Properties[o.field])
			if cmp == 0 {
				continue
			}
			if o.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// compareValues orders property values of like type. Mixed or unknown
// types compare equal so the sort stays stable.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
		}
	case int64:
		if bv, ok := toFloat(b); ok {
			return compareFloats(float64(av), bv)
		}
	case float64:
		if bv, ok := toFloat(b); ok {
			return compareFloats(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1
			case av && !bv:
				return 1
			}
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
