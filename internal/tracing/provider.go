// Package tracing wires optional OpenTelemetry spans around each request and
// W3C trace context propagation to the target.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/loadfire/loadfire/internal/config"
)

const instrumentationName = "loadfire"

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Provider owns the tracer provider for one run. The zero value and a nil
// *Provider both behave as tracing disabled.
type Provider struct {
	tp        *sdktrace.TracerProvider
	propagate bool
}

// Init builds a Provider from config. Spans are exported only when an
// endpoint is known, either from config or OTEL_EXPORTER_OTLP_ENDPOINT.
// Header propagation does not need an exporter.
func Init(ctx context.Context, cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}
	p := &Provider{propagate: cfg.ShouldPropagate()}
	if p.propagate {
		otel.SetTextMapPropagator(propagator)
	}

	endpoint := pick(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		return p, nil
	}

	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	exporter, err := exporterFor(ctx, cfg.Protocol, endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(pick(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), instrumentationName)),
	))
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(p.tp)
	return p, nil
}

// Tracer returns the run's tracer, or nil when no spans are exported.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Tracer(instrumentationName)
}

// TracerOrNoop is Tracer with a no-op fallback.
func (p *Provider) TracerOrNoop() trace.Tracer {
	if t := p.Tracer(); t != nil {
		return t
	}
	return noop.NewTracerProvider().Tracer(instrumentationName)
}

// ShouldPropagate returns whether W3C trace headers should be injected.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func samplerFor(rate float64) (sdktrace.Sampler, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	}
	if rate == 1 {
		return sdktrace.AlwaysSample(), nil
	}
	return sdktrace.TraceIDRatioBased(rate), nil
}

func exporterFor(ctx context.Context, protocol, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracegrpc.WithDialOption(
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			), otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", p)
	}
}

// pick returns the first non-blank value.
func pick(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
