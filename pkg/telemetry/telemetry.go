// Package telemetry wires OpenTelemetry tracing for test runs.
package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the OTel instrumentation scope name.
	InstrumentationName = "github.com/playwrighty/playwrighty"

	// EndpointEnv enables trace export when set.
	EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Tracer returns the tracer used by the runtime. If tp is nil the global
// provider is used, which is a noop until Setup installs a real one.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// NewTracerProvider creates a TracerProvider that exports spans via OTLP/HTTP.
// The endpoint and headers come from the standard OTEL_EXPORTER_OTLP_*
// variables. The caller is responsible for calling Shutdown.
func NewTracerProvider(ctx context.Context, serviceName, version string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// Setup installs a global exporting TracerProvider when EndpointEnv is set.
// The returned shutdown function is always safe to call.
func Setup(ctx context.Context, serviceName, version string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if os.Getenv(EndpointEnv) == "" {
		return noop, nil
	}

	tp, err := NewTracerProvider(ctx, serviceName, version)
	if err != nil {
		return noop, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	slog.Debug("OpenTelemetry tracing enabled", "endpoint", os.Getenv(EndpointEnv))

	return tp.Shutdown, nil
}
