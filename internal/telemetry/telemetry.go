// Package telemetry wraps OpenTelemetry tracing for the engine's frame
// passes (AllocateFromDepth, IntegrateFromDepth, Compactify,
// GarbageCollect), adapted from the teacher's internal/tracing package
// (StartSpan/AddSpanAttributes wrapping HTTP-request and cache-op spans)
// to per-frame-pass spans carrying live-block count, the running count of
// chain-bound hits and arena occupancy as attributes.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "voxelhash-engine"
	serviceVersion = "1.0.0"
)

var tracerProvider *tracesdk.TracerProvider

// Init wires a Jaeger exporter behind a flag: when jaegerEndpoint is
// empty, tracing stays a no-op provider and nothing is exported — a CLI
// bench tool (cmd/voxelhash-bench) has no business dialing a collector
// unless the operator asked for one (see DESIGN.md).
func Init(jaegerEndpoint string) error {
	if jaegerEndpoint == "" {
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
	if err != nil {
		return fmt.Errorf("telemetry: create jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry: build resource: %w", err)
	}

	tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	return nil
}

// Shutdown flushes and stops the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns a tracer scoped to one engine component (e.g. "hashtable",
// "compact").
func Tracer(component string) trace.Tracer {
	return otel.Tracer(fmt.Sprintf("%s/%s", serviceName, component))
}

// PassAttributes are the standard span attributes attached to every
// frame-pass span: the volumetric-engine equivalent of the teacher's
// cache hit/miss attributes.
type PassAttributes struct {
	LiveBlocks     int
	ChainLenBucket int
	ArenaOccupancy float64
}

func (p PassAttributes) kvs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("voxelhash.live_blocks", p.LiveBlocks),
		attribute.Int("voxelhash.chain_len_bucket", p.ChainLenBucket),
		attribute.Float64("voxelhash.arena_occupancy", p.ArenaOccupancy),
	}
}

// StartPass starts a span named after one engine frame-pass operation.
func StartPass(ctx context.Context, tracer trace.Tracer, passName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, passName)
}

// EndPass records the pass's summary attributes and ends the span.
func EndPass(span trace.Span, attrs PassAttributes) {
	if span.IsRecording() {
		span.SetAttributes(attrs.kvs()...)
	}
	span.End()
}

// RecordError records err on the span belonging to ctx, if any.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
	}
}
