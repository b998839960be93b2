package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codeatlas-ai/codeatlas/internal/embedding"
	"github.com/codeatlas-ai/codeatlas/internal/query"
	"github.com/codeatlas-ai/codeatlas/internal/types"
	"github.com/codeatlas-ai/codeatlas/internal/vector"
)

var queryFlags struct {
	where     []string
	semantic  string
	index     string
	topK      int
	minScore  float64
	expand    []string
	depth     int
	direction string
	orderBy   string
	desc      bool
	limit     int
	offset    int
	count     bool
	explain   bool
}

var queryCmd = &cobra.Command{
	Use:   "query <label>",
	Short: "Query the code graph",
	Long: `Queries nodes of <label>, combining property filters with semantic
similarity search.

Filter syntax for --where:
  field=value    equals
  field=~value   contains
  field^=value   has prefix
  field$=value   has suffix
  field>value    greater than     (also >=, <, <=)

Examples:
  codeatlas query Function --where name=Connect
  codeatlas query Function --where path=~internal --semantic "retry logic" --index function_embeddings
  codeatlas query Function --where name=Connect --expand CALLS --depth 2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg)
		ctx := cmd.Context()

		spec, err := buildSpec(args[0])
		if err != nil {
			return err
		}

		client, err := connectGraph(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close(context.Background())

		var search *vector.SearchService
		if queryFlags.semantic != "" {
			provider, err := embedding.NewProvider(cfg.Embedding)
			if err != nil {
				return err
			}
			search = vector.NewSearchService(client, provider, logger)
		}

		var engine query.Engine = query.NewEngine(client, search, cfg.Query, logger)
		if cfg.Tracing.Enabled {
			engine = query.NewTracedEngine(engine)
		}

		switch {
		case queryFlags.count:
			count, err := engine.Count(ctx, spec)
			if err != nil {
				return err
			}
			cmd.Println(count)
			return nil

		case queryFlags.explain:
			plan, err := engine.Explain(ctx, spec)
			if err != nil {
				return err
			}
			return printYAML(cmd, plan)

		default:
			set, err := engine.Execute(ctx, spec)
			if err != nil {
				return err
			}
			for _, warning := range set.Warnings {
				cmd.PrintErrf("warning: %s\n", warning)
			}
			return printYAML(cmd, renderResults(set))
		}
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringArrayVar(&queryFlags.where, "where", nil, "property filter, repeatable (see --help for syntax)")
	f.StringVar(&queryFlags.semantic, "semantic", "", "semantic similarity text")
	f.StringVar(&queryFlags.index, "index", "", "vector index for --semantic")
	f.IntVar(&queryFlags.topK, "top-k", 0, "semantic candidate count")
	f.Float64Var(&queryFlags.minScore, "min-score", 0, "minimum semantic score")
	f.StringArrayVar(&queryFlags.expand, "expand", nil, "relationship type to expand, repeatable")
	f.IntVar(&queryFlags.depth, "depth", 1, "expansion depth")
	f.StringVar(&queryFlags.direction, "direction", "outgoing", "expansion direction: outgoing|incoming|both")
	f.StringVar(&queryFlags.orderBy, "order-by", "", "order results by property instead of score")
	f.BoolVar(&queryFlags.desc, "desc", false, "descending property order")
	f.IntVar(&queryFlags.limit, "limit", 0, "maximum results")
	f.IntVar(&queryFlags.offset, "offset", 0, "results to skip")
	f.BoolVar(&queryFlags.count, "count", false, "print the match count only")
	f.BoolVar(&queryFlags.explain, "explain", false, "print the query plan without executing")
}

// buildSpec turns command flags into a query spec.
func buildSpec(label string) (query.Spec, error) {
	spec := query.New(label)

	for _, raw := range queryFlags.where {
		predicate, err := parsePredicate(raw)
		if err != nil {
			return query.Spec{}, err
		}
		spec = spec.Where(predicate)
	}

	if queryFlags.semantic != "" {
		spec = spec.Semantic(queryFlags.semantic, query.SemanticOptions{
			VectorIndex: queryFlags.index,
			TopK:        queryFlags.topK,
			MinScore:    queryFlags.minScore,
		})
	}

	for _, relType := range queryFlags.expand {
		spec = spec.Expand(relType, query.ExpandOptions{
			Depth:     queryFlags.depth,
			Direction: query.Direction(queryFlags.direction),
		})
	}

	if queryFlags.orderBy != "" {
		spec = spec.OrderBy(queryFlags.orderBy, queryFlags.desc)
	}
	if queryFlags.limit > 0 {
		spec = spec.Limit(queryFlags.limit)
	}
	if queryFlags.offset > 0 {
		spec = spec.Offset(queryFlags.offset)
	}

	return spec, nil
}

// predicateOps maps flag operators to predicate constructors, longest
// operators first so ">=" wins over ">".
var predicateOps = []struct {
	token string
	build func(field string, value any) query.Predicate
}{
	{">=", func(f string, v any) query.Predicate { return query.Gte(f, v) }},
	{"<=", func(f string, v any) query.Predicate { return query.Lte(f, v) }},
	{"=~", func(f string, v any) query.Predicate { return query.Contains(f, fmt.Sprint(v)) }},
	{"^=", func(f string, v any) query.Predicate { return query.HasPrefix(f, fmt.Sprint(v)) }},
	{"$=", func(f string, v any) query.Predicate { return query.HasSuffix(f, fmt.Sprint(v)) }},
	{">", func(f string, v any) query.Predicate { return query.Gt(f, v) }},
	{"<", func(f string, v any) query.Predicate { return query.Lt(f, v) }},
	{"=", func(f string, v any) query.Predicate { return query.Eq(f, v) }},
}

func parsePredicate(raw string) (query.Predicate, error) {
	for _, op := range predicateOps {
		idx := strings.Index(raw, op.token)
		if idx <= 0 {
			continue
		}
		field := strings.TrimSpace(raw[:idx])
		value := raw[idx+len(op.token):]
		return op.build(field, parseValue(value)), nil
	}
	return query.Predicate{}, types.NewError(query.ErrCodeInvalidSpec,
		fmt.Sprintf("cannot parse filter %q", raw))
}

// parseValue keeps numeric and boolean literals typed so Cypher
// comparisons behave.
func parseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// resultView is the YAML shape of one query result.
type resultView struct {
	UUID       string         `yaml:"uuid"`
	Score      float64        `yaml:"score"`
	Labels     []string       `yaml:"labels,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Related    []relatedView  `yaml:"related,omitempty"`
}

type relatedView struct {
	UUID         string         `yaml:"uuid"`
	Relationship string         `yaml:"relationship"`
	Direction    string         `yaml:"direction"`
	Distance     int            `yaml:"distance"`
	Properties   map[string]any `yaml:"properties,omitempty"`
}

func renderResults(set *query.ResultSet) []resultView {
	views := make([]resultView, 0, len(set.Results))
	for _, r := range set.Results {
		view := resultView{
			UUID:       r.UUID,
			Score:      r.Score,
			Labels:     r.Labels,
			Properties: withoutEmbeddings(r.Properties),
		}
		for _, rel := range r.Related {
			view.Related = append(view.Related, relatedView{
				UUID:         rel.Entity.UUID,
				Relationship: rel.RelationshipType,
				Direction:    string(rel.Direction),
				Distance:     rel.Distance,
				Properties:   withoutEmbeddings(rel.Entity.Properties),
			})
		}
		views = append(views, view)
	}
	return views
}

// withoutEmbeddings drops bulky vector properties from display output.
func withoutEmbeddings(props map[string]any) map[string]any {
	cleaned := make(map[string]any, len(props))
	for k, v := range props {
		if strings.Contains(k, "embedding") {
			continue
		}
		cleaned[k] = v
	}
	return cleaned
}

func printYAML(cmd *cobra.Command, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	return nil
}
