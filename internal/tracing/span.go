package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	TransactionKey = attribute.Key("vegasload.transaction")
	VUserKey       = attribute.Key("vegasload.vuser")
	ActionKey      = attribute.Key("vegasload.action")
)

// StartTransactionSpan starts an internal span named after a scenario
// transaction. Nested transactions become child spans through ctx.
func StartTransactionSpan(ctx context.Context, tracer trace.Tracer, name string, vu int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(TransactionKey.String(name), VUserKey.Int(vu)),
	)
}

// StartRequestSpan starts a client span for one HTTP request of an action.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, action, method, url string) (context.Context, trace.Span) {
	spanName := method + " " + action
	if action == "" {
		spanName = method + " request"
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	)
	if action != "" {
		span.SetAttributes(ActionKey.String(action))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
