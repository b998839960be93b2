package query

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
)

// TracedEngine wraps an Engine with OpenTelemetry spans. Each operation
// records the target label, clause shape and result counts.
type TracedEngine struct {
	inner  Engine
	tracer trace.Tracer
}

// NewTracedEngine decorates inner with tracing.
func NewTracedEngine(inner Engine) *TracedEngine {
	return &TracedEngine{
		inner:  inner,
		tracer: otel.Tracer("codeatlas/query"),
	}
}

func (t *TracedEngine) Execute(ctx context.Context, spec Spec) (*ResultSet, error) {
	ctx, span := t.tracer.Start(ctx, "query.Execute",
		trace.WithAttributes(specAttributes(spec)...))
	defer span.End()

	set, err := t.inner.Execute(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("query.results", len(set.Results)),
		attribute.Int("query.warnings", len(set.Warnings)),
	)
	return set, nil
}

func (t *TracedEngine) Count(ctx context.Context, spec Spec) (int64, error) {
	ctx, span := t.tracer.Start(ctx, "query.Count",
		trace.WithAttributes(specAttributes(spec)...))
	defer span.End()

	count, err := t.inner.Count(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("query.count", count))
	return count, nil
}

func (t *TracedEngine) Explain(ctx context.Context, spec Spec) (*graph.Plan, error) {
	ctx, span := t.tracer.Start(ctx, "query.Explain",
		trace.WithAttributes(specAttributes(spec)...))
	defer span.End()

	plan, err := t.inner.Explain(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return plan, nil
}

func specAttributes(spec Spec) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("query.label", spec.label),
		attribute.Int("query.predicates", len(spec.predicates)),
		attribute.Bool("query.semantic", spec.HasSemantic()),
		attribute.Int("query.expansions", len(spec.expansions)),
	}
}
