// Package trace wires OpenTelemetry for the gateway and the CLI.
//
// Spans are opened with Start against whatever provider is registered
// globally, so library callers that never call NewProvider get the otel
// no-op tracer.
package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is replaced by the service name handed to NewProvider.
var tracerName = "github.com/buildkite/blobgate"

// NewProvider registers a global tracer provider and W3C trace context
// propagation. The "grpc" exporter ships spans over OTLP using the standard
// OTEL_EXPORTER_OTLP_* environment, anything else discards them.
//
// The caller must Shutdown the provider to flush batched spans.
func NewProvider(ctx context.Context, exporter, name, version string) (*sdktrace.TracerProvider, error) {
	res, err := newResource(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exp sdktrace.SpanExporter
	switch exporter {
	case "grpc":
		exp, err = otlptracegrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
	default:
		// a null exporter is used for testing
		exp = tracetest.NewNoopExporter()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	tracerName = name

	return tp, nil
}

// Start opens a span on the current global provider. The caller ends it.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, name)
}

// newResource describes the process: service name and version, host and
// anything set through OTEL_RESOURCE_ATTRIBUTES.
func newResource(ctx context.Context, name, version string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(version),
			semconv.TelemetrySDKLanguageGo,
		),
	)
}

// NewError formats msg with fmt.Errorf, so %w wrapping is preserved, records
// the result on span and marks the span failed. A nil span only formats.
func NewError(span trace.Span, msg string, args ...any) error {
	err := fmt.Errorf(msg, args...)
	if span == nil {
		return err
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

// RecordError records err on span and returns it unchanged, which keeps
// typed errors such as *blobgate.AccessError intact for errors.As. Nil errors
// are ignored.
func RecordError(span trace.Span, err error) error {
	if err == nil || span == nil {
		return err
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
