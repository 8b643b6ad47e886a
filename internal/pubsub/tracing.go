package pubsub

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "serialbus-pubsub"

// startJobSpan opens the span covering one executor job of a publish.
func (t *Topic[T]) startJobSpan(ctx context.Context, jobID string, index, total, size int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("pubsub.job.%s", t.label()),
		trace.WithAttributes(
			attribute.String("messaging.system", "serialbus"),
			attribute.String("messaging.operation", "process"),
			attribute.String("messaging.destination", t.label()),
			attribute.String("serialbus.job_id", jobID),
			attribute.String("serialbus.priority", t.priority.String()),
			attribute.Int("serialbus.group_index", index),
			attribute.Int("serialbus.group_count", total),
			attribute.Int("serialbus.group_size", size),
		),
	)
}

// recordJobResult marks the span failed when any subscriber of the job failed.
func recordJobResult(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
