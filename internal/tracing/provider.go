// Package tracing exports scenario transactions as OpenTelemetry spans and
// propagates W3C trace context to the application under test.
package tracing

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
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

	"github.com/torosent/vegasload/internal/config"
)

const (
	instrumentationName = "github.com/torosent/vegasload"
	defaultServiceName  = "vegasload"
	defaultProtocol     = "grpc"

	// RunIDKey is the resource attribute carrying the host run id.
	RunIDKey = attribute.Key("vegasload.run_id")
)

type exporterFunc func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFunc{
	"grpc": func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	},
	"http": func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	},
}

// Provider owns the tracer used for transaction and request spans. The zero
// value and a nil *Provider both hand out no-op spans.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init builds an OTLP-exporting provider from cfg and tags every span with
// runID. Without an endpoint it returns a provider that only propagates,
// and only when cfg asks for it.
func Init(ctx context.Context, cfg config.TracingConfig, runID string) (*Provider, error) {
	endpoint := firstNonEmpty(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		if cfg.ShouldPropagate() {
			installPropagator()
		}
		return &Provider{propagate: cfg.ShouldPropagate()}, nil
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", cfg.SampleRate)
	}

	protocol := strings.ToLower(firstNonEmpty(cfg.Protocol, defaultProtocol))
	newExporter, ok := exporters[protocol]
	if !ok {
		return nil, fmt.Errorf("unsupported OTLP protocol %q (supported: %s)", protocol, strings.Join(protocols(), ", "))
	}
	exporter, err := newExporter(ctx, endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	serviceName := firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), defaultServiceName)
	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(serviceName, runID)...))
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	return NewProvider(tp, cfg.ShouldPropagate()), nil
}

// NewProvider wraps an existing TracerProvider, e.g. one backed by an
// in-memory exporter, and installs the W3C propagator.
func NewProvider(tp *sdktrace.TracerProvider, propagate bool) *Provider {
	installPropagator()
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName), propagate: propagate}
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func resourceAttributes(serviceName, runID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if runID != "" {
		attrs = append(attrs, RunIDKey.String(runID))
	}
	return attrs
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

func protocols() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Tracer returns the configured tracer, or a no-op tracer when export is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether traceparent headers go out with requests.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
