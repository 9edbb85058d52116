package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "hotelchat"

// StartChatSpan starts a span covering one chat turn.
func StartChatSpan(ctx context.Context, tenant, conversationID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "chat",
		trace.WithAttributes(
			attribute.String("tenant", tenant),
			attribute.String("conversation.id", conversationID),
		),
	)
}

// StartUpstreamSpan starts a span for a model API call including its retries.
func StartUpstreamSpan(ctx context.Context, host string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "upstream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("upstream.host", host)),
	)
}

// StartExchangeLogSpan starts a span for persisting an exchange record.
func StartExchangeLogSpan(ctx context.Context, tenant string, sinks int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "exchange_log",
		trace.WithAttributes(
			attribute.String("tenant", tenant),
			attribute.Int("sinks", sinks),
		),
	)
}
