package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys
const (
	AttrChannel   = attribute.Key("textai.bridge.channel")
	AttrRequestID = attribute.Key("textai.bridge.request_id")
	AttrAction    = attribute.Key("textai.ai.action")
)

// StartSpan starts a new span with the given name
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// MarkSpanError marks the current span as failed
func MarkSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}

// Inject writes the trace context of ctx into envelope metadata.
// A nil map is allocated only when there is something to carry.
func Inject(ctx context.Context, meta map[string]string) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return meta
	}
	if meta == nil {
		meta = make(map[string]string, len(carrier))
	}
	for k, v := range carrier {
		meta[k] = v
	}
	return meta
}

// Extract returns ctx carrying the remote trace context found in metadata
func Extract(ctx context.Context, meta map[string]string) context.Context {
	if len(meta) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(meta))
}
