package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "protoloop"

// StartRunSpan starts a span covering one full pipeline run.
func StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
	)
}

// StartIterationSpan starts a span for one generate+review iteration.
func StartIterationSpan(ctx context.Context, runID string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.iteration",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("iteration", iteration),
		),
	)
}

// StartReviewSpan starts a span for a single review step.
func StartReviewSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pipeline.review",
		trace.WithAttributes(
			attribute.String("run.id", runID),
		),
	)
}
