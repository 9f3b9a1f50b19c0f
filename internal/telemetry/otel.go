package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used for ingest batch and
// search refresh spans.
const TracerName = "sessionscope"

// Tracer wraps a trace.Tracer with the shutdown hook of whatever exporter
// backs it, so callers can defer Shutdown unconditionally.
type Tracer struct {
	trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes and tears down the underlying exporter, if any.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// NewTracer builds a Tracer from the OTEL_EXPORTER_OTLP_ENDPOINT and
// OTEL_TRACES_EXPORTER environment variables. With neither set, it returns
// a no-op tracer with zero overhead. OTEL_TRACES_EXPORTER=console selects
// a pretty-printed stdout exporter instead, for local debugging.
func NewTracer(ctx context.Context) (*Tracer, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	console := os.Getenv("OTEL_TRACES_EXPORTER") == "console"

	if endpoint == "" && !console {
		return &Tracer{Tracer: nooptrace.NewTracerProvider().Tracer(TracerName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("sessionscope"),
			attribute.String("sessionscope.component", "telemetry"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	exporter, err := newExporter(ctx, console)
	if err != nil {
		return nil, fmt.Errorf("build otel exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return &Tracer{
		Tracer:   tp.Tracer(TracerName),
		shutdown: tp.Shutdown,
	}, nil
}

func newExporter(ctx context.Context, console bool) (sdktrace.SpanExporter, error) {
	if console {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	// otlptracehttp.New reads OTEL_EXPORTER_OTLP_ENDPOINT itself; WithInsecure
	// covers the common case of a local collector without TLS.
	return otlptracehttp.New(ctx, otlptracehttp.WithInsecure())
}
