package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/shopcore/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New wraps the globally configured otel tracer provider. The SDK pipeline
// (exporter, sampler, otel.SetTracerProvider) is set up by the host process.
func New(name string) observability.Tracer {
	if name == "" {
		name = "shopcore"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
