package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/types"
)

// identifierPattern is the safe subset of Cypher identifiers that may be
// spliced into query text. Everything else goes through parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// compiled is a filter query ready to run against the graph.
type compiled struct {
	cypher string
	params map[string]any
}

// compileFilter builds the MATCH/WHERE query for a Spec's filter clauses,
// returning node uuid, properties and labels per row.
func compileFilter(s Spec) (compiled, error) {
	where, params, err := compileWhere(s)
	if err != nil {
		return compiled{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (n:%s)", s.label)
	b.WriteString(where)
	b.WriteString(" RETURN n.uuid AS uuid, properties(n) AS props, labels(n) AS labels")

	return compiled{cypher: b.String(), params: params}, nil
}

// compileCount builds the counting variant of the filter query.
func compileCount(s Spec) (compiled, error) {
	where, params, err := compileWhere(s)
	if err != nil {
		return compiled{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (n:%s)", s.label)
	b.WriteString(where)
	b.WriteString(" RETURN count(n) AS count")

	return compiled{cypher: b.String(), params: params}, nil
}

// compileWhere renders the WHERE clause (with leading space) and its
// parameter map. Returns an empty clause when there are no predicates.
func compileWhere(s Spec) (string, map[string]any, error) {
	if !identifierPattern.MatchString(s.label) {
		return "", nil, types.NewError(ErrCodeCompileFailed,
			fmt.Sprintf("invalid label %q", s.label))
	}

	params := make(map[string]any)
	if len(s.predicates) == 0 {
		return "", params, nil
	}

	terms := make([]string, 0, len(s.predicates))
	for i, p := range s.predicates {
		if !identifierPattern.MatchString(p.Field) {
			return "", nil, types.NewError(ErrCodeCompileFailed,
				fmt.Sprintf("invalid field name %q", p.Field))
		}

		param := fmt.Sprintf("p%d", i)
		term, err := compilePredicate(p, param)
		if err != nil {
			return "", nil, err
		}
		terms = append(terms, term)

		if p.Op == OpIn {
			params[param] = p.Values
		} else {
			params[param] = p.Value
		}
	}

	return " WHERE " + strings.Join(terms, " AND "), params, nil
}

func compilePredicate(p Predicate, param string) (string, error) {
	field := "n." + p.Field
	ref := "$" + param

	switch p.Op {
	case OpEq:
		return field + " = " + ref, nil
	case OpContains:
		return field + " CONTAINS " + ref, nil
	case OpHasPrefix:
		return field + " STARTS WITH " + ref, nil
	case OpHasSuffix:
		return field + " ENDS WITH " + ref, nil
	case OpGt:
		return field + " > " + ref, nil
	case OpGte:
		return field + " >= " + ref, nil
	case OpLt:
		return field + " < " + ref, nil
	case OpLte:
		return field + " <= " + ref, nil
	case OpIn:
		return field + " IN " + ref, nil
	default:
		return "", types.NewError(ErrCodeCompileFailed,
			fmt.Sprintf("unsupported operator %q", p.Op))
	}
}

// compileExpand builds the variable-length traversal query for one
// expansion clause rooted at a single node.
func compileExpand(e expandClause) (compiled, error) {
	if !identifierPattern.MatchString(e.relType) {
		return compiled{}, types.NewError(ErrCodeCompileFailed,
			fmt.Sprintf("invalid relationship type %q", e.relType))
	}

	var pattern string
	rel := fmt.Sprintf("[:%s*1..%d]", e.relType, e.opts.Depth)
	switch e.opts.Direction {
	case DirectionIncoming:
		pattern = "<-" + rel + "-"
	case DirectionBoth:
		pattern = "-" + rel + "-"
	default:
		pattern = "-" + rel + "->"
	}

	cypher := fmt.Sprintf(
		"MATCH p = (n {uuid: $uuid})%s(m) "+
			"RETURN m.uuid AS uuid, properties(m) AS props, labels(m) AS labels, min(length(p)) AS distance",
		pattern)

	return compiled{cypher: cypher, params: map[string]any{}}, nil
}
