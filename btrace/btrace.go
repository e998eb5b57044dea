// Package btrace adapts breaker.Instrument to OpenTelemetry tracing,
// emitting a span event on every state transition and call rejection
// so a breaker's behavior shows up alongside the trace of the call it
// guards.
package btrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/eugener/breaker"
)

// Setup initializes OpenTelemetry tracing with an OTLP gRPC exporter
// against endpoint and registers it as the global TracerProvider. The
// returned function must be called on process shutdown to flush
// pending spans.
func Setup(ctx context.Context, serviceName, endpoint string, sampleRate float64) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case sampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case sampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Instrument records breaker transitions as events on ctx's current
// span. It never starts its own span: the breaker is a detail of
// whatever call the caller is already tracing.
type Instrument struct {
	ctx    context.Context
	tracer trace.Tracer
	name   string
}

// New returns an Instrument that attaches events to the span active in
// ctx when each event fires, under tracer.
func New(ctx context.Context, tracer trace.Tracer, name string) *Instrument {
	return &Instrument{ctx: ctx, tracer: tracer, name: name}
}

// Tracer returns a named tracer from the global provider, for callers
// that only called Setup and did not build their own tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func (i *Instrument) event(name string) {
	span := trace.SpanFromContext(i.ctx)
	span.AddEvent(name, trace.WithAttributes(attribute.String("breaker.name", i.name)))
}

func (i *Instrument) OnCallRejected() { i.event("breaker.call_rejected") }
func (i *Instrument) OnOpen()         { i.event("breaker.open") }
func (i *Instrument) OnHalfOpen()     { i.event("breaker.half_open") }
func (i *Instrument) OnClosed()       { i.event("breaker.closed") }

var _ breaker.Instrument = (*Instrument)(nil)
