package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/tether"

// Tracer provides OpenTelemetry tracing for Tether.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tether tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDispatchSpan starts a new span for a dispatch attempt.
func (t *Tracer) StartDispatchSpan(ctx context.Context, method, url string, attempt int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "tether.dispatch",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
			attribute.Int("tether.attempt", attempt),
		),
	)
}

// EndDispatchSpan ends a dispatch span with result attributes.
func (t *Tracer) EndDispatchSpan(span trace.Span, statusCode int, latencyMs int, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("tether.latency_ms", latencyMs),
	)
	if errMsg != "" {
		span.SetAttributes(attribute.String("tether.error", errMsg))
	}
	span.End()
}
