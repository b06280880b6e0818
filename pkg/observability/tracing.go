// Package observability owns the OpenTelemetry tracer lifecycle for the
// sync engine. Metrics collectors live in pkg/metrics and the global
// logger in pkg/logger; only tracing is wired here.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/talentsync/talentsync/pkg/config"
)

const serviceName = "talentsync"

var (
	provider *sdktrace.TracerProvider
	mu       sync.Mutex
)

// Init configures the global tracer provider. With tracing disabled it
// leaves the no-op provider in place, so StartSpan stays safe to call.
func Init(cfg config.ObservabilityConfig, version string) error {
	if !cfg.EnableTracing {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.TraceSampleRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.TraceSampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.TraceSampleRate)
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil
	}

	err := provider.Shutdown(ctx)
	provider = nil
	if err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	return nil
}

// Span wraps an OpenTelemetry span. Attributes are batched and applied
// once at End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// StartSpan opens a span under the current global provider.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := otel.Tracer(serviceName).Start(ctx, operation)
	return ctx, &Span{span: span}
}

// SetAttribute records an attribute on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.attributes = append(s.attributes, attr)
}

// Fail marks the span as errored.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.span.SetStatus(codes.Error, err.Error())
	s.SetAttribute("error", true)
}

// End applies batched attributes and closes the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// ContextFromHeaders extracts upstream trace context from webhook
// headers into ctx. Sources that propagate W3C traceparent headers get
// their webhook processing linked to the originating trace.
func ContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
