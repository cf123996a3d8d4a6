package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tasktimer"

// StartActionSpan starts a span for a user action on a task. taskID is 0
// for actions that do not target an existing task.
func StartActionSpan(ctx context.Context, action string, taskID int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("task.action", action)}
	if taskID != 0 {
		attrs = append(attrs, attribute.Int64("task.id", taskID))
	}
	return otel.Tracer(tracerName).Start(ctx, "task."+action, trace.WithAttributes(attrs...))
}

// StartTickSpan starts a span for one scheduled tick.
func StartTickSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "timer.tick")
}
