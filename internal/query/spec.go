package query

import (
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// Query error codes
const (
	ErrCodeInvalidSpec     types.ErrorCode = "QUERY_INVALID_SPEC"
	ErrCodeExecutionFailed types.ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeExpansionFailed types.ErrorCode = "QUERY_EXPANSION_FAILED"
	ErrCodeCompileFailed   types.ErrorCode = "QUERY_COMPILE_FAILED"
)

// Op identifies a predicate operator.
type Op string

const (
	OpEq        Op = "eq"
	OpContains  Op = "contains"
	OpHasPrefix Op = "has_prefix"
	OpHasSuffix Op = "has_suffix"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpIn        Op = "in"
)

// Direction controls which way relationship expansion traverses.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Predicate is a single property constraint. Predicates on a Spec are
// AND-combined.
type Predicate struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Eq matches properties equal to value.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Contains matches string properties containing substr.
func Contains(field, substr string) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: substr}
}

// HasPrefix matches string properties starting with prefix.
func HasPrefix(field, prefix string) Predicate {
	return Predicate{Field: field, Op: OpHasPrefix, Value: prefix}
}

// HasSuffix matches string properties ending with suffix.
func HasSuffix(field, suffix string) Predicate {
	return Predicate{Field: field, Op: OpHasSuffix, Value: suffix}
}

// Gt matches numeric properties greater than value.
func Gt(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpGt, Value: value}
}

// Gte matches numeric properties greater than or equal to value.
func Gte(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpGte, Value: value}
}

// Lt matches numeric properties less than value.
func Lt(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpLt, Value: value}
}

// Lte matches numeric properties less than or equal to value.
func Lte(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpLte, Value: value}
}

// In matches properties equal to any of values.
func In(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// SemanticOptions configures the semantic clause of a Spec.
type SemanticOptions struct {
	// VectorIndex is the vector index name to search. Required.
	VectorIndex string

	// TopK is how many candidates to pull from the index.
	TopK int

	// MinScore drops semantic candidates scoring below it.
	MinScore float64
}

// ExpandOptions configures a relationship expansion clause.
type ExpandOptions struct {
	// Depth is the maximum traversal depth, at least 1.
	Depth int

	// Direction selects traversal direction. Defaults to outgoing.
	Direction Direction
}

// expandClause pairs a relationship type with its options.
type expandClause struct {
	relType string
	opts    ExpandOptions
}

// orderClause is one ORDER BY term.
type orderClause struct {
	field string
	desc  bool
}

// Spec is an immutable query description over a single node label.
// Every builder method returns a copy; a Spec value can be shared and
// derived from freely.
type Spec struct {
	label        string
	predicates   []Predicate
	semanticText string
	semantic     *SemanticOptions
	expansions   []expandClause
	order        []orderClause
	limit        int
	offset       int
	rerankers    []Reranker
	weights      *Weights
}

// Weights overrides the engine's configured rerank weights for one Spec.
type Weights struct {
	Filter   float64
	Semantic float64
}

// New creates a Spec targeting the given node label.
func New(label string) Spec {
	return Spec{label: label}
}

// Where returns a copy with additional predicates appended.
func (s Spec) Where(predicates ...Predicate) Spec {
	c := s.clone()
	c.predicates = append(c.predicates, predicates...)
	return c
}

// Semantic returns a copy with a semantic clause. Calling it twice replaces
// the previous clause.
func (s Spec) Semantic(text string, opts SemanticOptions) Spec {
	c := s.clone()
	c.semanticText = text
	c.semantic = &opts
	return c
}

// Expand returns a copy with a relationship expansion clause appended.
func (s Spec) Expand(relType string, opts ExpandOptions) Spec {
	c := s.clone()
	if opts.Direction == "" {
		opts.Direction = DirectionOutgoing
	}
	c.expansions = append(c.expansions, expandClause{relType: relType, opts: opts})
	return c
}

// OrderBy returns a copy ordered by the given property. Multiple calls
// append secondary sort terms. When no OrderBy is set, results are ordered
// by score descending.
func (s Spec) OrderBy(field string, desc bool) Spec {
	c := s.clone()
	c.order = append(c.order, orderClause{field: field, desc: desc})
	return c
}

// Limit returns a copy with a result cap.
func (s Spec) Limit(n int) Spec {
	c := s.clone()
	c.limit = n
	return c
}

// Offset returns a copy skipping the first n results.
func (s Spec) Offset(n int) Spec {
	c := s.clone()
	c.offset = n
	return c
}

// Rerank returns a copy with rerankers appended. Rerankers run in
// declaration order after scoring and expansion, each receiving the
// previous output.
func (s Spec) Rerank(rerankers ...Reranker) Spec {
	c := s.clone()
	c.rerankers = append(c.rerankers, rerankers...)
	return c
}

// WithWeights returns a copy overriding the engine's rerank weights.
func (s Spec) WithWeights(filter, semantic float64) Spec {
	c := s.clone()
	c.weights = &Weights{Filter: filter, Semantic: semantic}
	return c
}

// Label returns the target node label.
func (s Spec) Label() string {
	return s.label
}

// HasSemantic reports whether a semantic clause is set.
func (s Spec) HasSemantic() bool {
	return s.semantic != nil
}

// HasFilters reports whether any predicates are set.
func (s Spec) HasFilters() bool {
	return len(s.predicates) > 0
}

// clone copies the Spec with fresh slice headers so appends on the copy
// never alias the parent's backing arrays.
func (s Spec) clone() Spec {
	c := s
	c.predicates = append([]Predicate(nil), s.predicates...)
	c.expansions = append([]expandClause(nil), s.expansions...)
	c.order = append([]orderClause(nil), s.order...)
	c.rerankers = append([]Reranker(nil), s.rerankers...)
	if s.semantic != nil {
		sem := *s.semantic
		c.semantic = &sem
	}
	if s.weights != nil {
		w := *s.weights
		c.weights = &w
	}
	return c
}

// Validate checks the Spec before execution. maxExpandDepth bounds every
// expansion clause.
func (s Spec) Validate(maxExpandDepth int) error {
	if s.label == "" {
		return types.NewError(ErrCodeInvalidSpec, "label cannot be empty")
	}

	for _, p := range s.predicates {
		if p.Field == "" {
			return types.NewError(ErrCodeInvalidSpec, "predicate field cannot be empty")
		}
		if p.Op == OpIn && len(p.Values) == 0 {
			return types.NewError(ErrCodeInvalidSpec,
				fmt.Sprintf("In predicate on %q requires at least one value", p.Field))
		}
	}

	if s.semantic != nil {
		if s.semanticText == "" {
			return types.NewError(ErrCodeInvalidSpec, "semantic clause requires non-empty text")
		}
		if s.semantic.VectorIndex == "" {
			return types.NewError(ErrCodeInvalidSpec, "semantic clause requires a vector index")
		}
		if s.semantic.TopK < 0 {
			return types.NewError(ErrCodeInvalidSpec, "semantic top_k must be non-negative")
		}
		if s.semantic.MinScore < 0 || s.semantic.MinScore > 1 {
			return types.NewError(ErrCodeInvalidSpec,
				fmt.Sprintf("semantic min_score must be between 0.0 and 1.0, got %f", s.semantic.MinScore))
		}
	}

	for _, e := range s.expansions {
		if e.relType == "" {
			return types.NewError(ErrCodeInvalidSpec, "expansion relationship type cannot be empty")
		}
		if e.opts.Depth < 1 {
			return types.NewError(ErrCodeInvalidSpec,
				fmt.Sprintf("expansion depth must be at least 1, got %d", e.opts.Depth))
		}
		if maxExpandDepth > 0 && e.opts.Depth > maxExpandDepth {
			return types.NewError(ErrCodeInvalidSpec,
				fmt.Sprintf("expansion depth %d exceeds maximum %d", e.opts.Depth, maxExpandDepth))
		}
		switch e.opts.Direction {
		case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		default:
			return types.NewError(ErrCodeInvalidSpec,
				fmt.Sprintf("invalid expansion direction %q", e.opts.Direction))
		}
	}

	if s.limit < 0 {
		return types.NewError(ErrCodeInvalidSpec, "limit must be non-negative")
	}
	if s.offset < 0 {
		return types.NewError(ErrCodeInvalidSpec, "offset must be non-negative")
	}

	if s.weights != nil {
		sum := s.weights.Filter + s.weights.Semantic
		if sum < 0.999 || sum > 1.001 {
			return types.NewError(ErrCodeInvalidSpec,
				fmt.Sprintf("rerank weights must sum to 1.0, got %.3f", sum))
		}
	}

	return nil
}
