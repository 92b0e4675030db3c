// Package tracing configures OpenTelemetry tracing for the control
// plane. Grounded on the teacher's internal/v1/tracing package, adapted
// from a gRPC OTLP exporter (which pulled in the SFU's grpc dependency)
// to the HTTP OTLP exporter, since this service has no other use for
// gRPC.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// InitTracer builds a TracerProvider exporting spans to collectorAddr.
// When collectorAddr is empty, it still installs a TracerProvider (with
// no batcher) so that otelgin middleware has somewhere to record spans;
// nothing is ever sent off-box in that mode.
func InitTracer(ctx context.Context, serviceName, collectorAddr string) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracing resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if collectorAddr != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(collectorAddr))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}
