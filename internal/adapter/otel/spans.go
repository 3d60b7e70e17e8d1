package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "albatross"

// StartCommandSpan starts a span for one command execution.
func StartCommandSpan(ctx context.Context, command, aggregateID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "command",
		trace.WithAttributes(
			attribute.String("command.name", command),
			attribute.String("aggregate.id", aggregateID),
		),
	)
}

// StartProjectionSpan starts a span for applying one event to the read models.
func StartProjectionSpan(ctx context.Context, eventType, aggregateID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "projection",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("aggregate.id", aggregateID),
		),
	)
}
