// Package query executes declarative queries over the code graph,
// blending Cypher property filters with vector similarity search.
//
// A query is described by an immutable Spec built with chained methods:
//
//	spec := query.New("Function").
//		Where(query.Contains("path", "internal/graph")).
//		Semantic("connection retry logic", query.SemanticOptions{
//			VectorIndex: "function_embeddings",
//			TopK:        20,
//		}).
//		Expand("CALLS", query.ExpandOptions{Depth: 2}).
//		Limit(10)
//
//	set, err := engine.Execute(ctx, spec)
//
// When both filter and semantic clauses are present the engine runs them
// independently and merges hits by node uuid, scoring each result as
// filterWeight*filterScore + semanticWeight*semanticScore. A semantic
// failure on the combined path degrades the query to filter-only results
// and surfaces a warning on the ResultSet instead of failing.
package query
