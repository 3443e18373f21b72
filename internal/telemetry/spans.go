package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "decision-gate"

// StartBatchRoundSpan starts a span for one batch round.
func StartBatchRoundSpan(ctx context.Context, roundID string, epochs, ledger int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "round.batch",
		trace.WithAttributes(
			attribute.String("round.id", roundID),
			attribute.Int("batch.epochs", epochs),
			attribute.Int("batch.ledger", ledger),
		),
	)
}

// StartFrameRoundSpan starts a span for one frame round.
func StartFrameRoundSpan(ctx context.Context, roundID, frameID, host string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "round.frame",
		trace.WithAttributes(
			attribute.String("round.id", roundID),
			attribute.String("frame.id", frameID),
			attribute.String("frame.host", host),
		),
	)
}

// EndRoundSpan records the outcome and any error, then ends span.
func EndRoundSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("round.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
