// Package telemetry wires the matching service's core.Telemetry interface
// to OpenTelemetry, exporting spans and metrics over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/bapt252/supersmartmatch/core"
)

// Provider implements core.Telemetry with OpenTelemetry. It exports both
// traces and metrics through batched OTLP/HTTP, so the matching service can
// be pointed at any OTel collector without a protocol-specific client.
type Provider struct {
	tracer         trace.Tracer
	meter          metric.Meter
	traceProvider  *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider
	logger         core.Logger

	mu           sync.RWMutex
	shutdown     bool
	shutdownOnce sync.Once

	instrMu     sync.Mutex
	histograms  map[string]metric.Float64Histogram
	counters    map[string]metric.Float64Counter
}

// NewProvider creates an OTLP/HTTP exporter pipeline for the named service.
// endpoint defaults to localhost:4318 (the standard OTel collector HTTP port).
func NewProvider(serviceName, endpoint string, logger core.Logger) (*Provider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry: service name cannot be empty")
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String("1.0.0"),
	)

	ctx := context.Background()

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter for %s: %w", endpoint, err)
	}

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter for %s: %w", endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("telemetry provider started", map[string]interface{}{
		"service":  serviceName,
		"endpoint": endpoint,
	})

	return &Provider{
		tracer:         tp.Tracer("supersmartmatch"),
		meter:          mp.Meter("supersmartmatch"),
		traceProvider:  tp,
		metricProvider: mp,
		logger:         logger,
		histograms:     make(map[string]metric.Float64Histogram),
		counters:       make(map[string]metric.Float64Counter),
	}, nil
}

// StartSpan implements core.Telemetry.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shutdown || p.tracer == nil {
		return ctx, &core.NoOpSpan{}
	}
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry. Metric names ending in
// "duration_ms"/"latency_ms"/"_time_ms" are recorded as histograms; everything else as
// monotonic counters, mirroring the naming convention used throughout this
// service's logging fields (*_ms, *_count, *_total).
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down || p.meter == nil {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	ctx := context.Background()
	if isDurationMetric(name) {
		h := p.histogramFor(name)
		if h != nil {
			h.Record(ctx, value, metric.WithAttributes(attrs...))
		}
		return
	}
	c := p.counterFor(name)
	if c != nil {
		c.Add(ctx, value, metric.WithAttributes(attrs...))
	}
}

func isDurationMetric(name string) bool {
	for _, suffix := range []string{"duration_ms", "latency_ms", "_time_ms"} {
		if len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

func (p *Provider) histogramFor(name string) metric.Float64Histogram {
	p.instrMu.Lock()
	defer p.instrMu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return h
	}
	h, err := p.meter.Float64Histogram(name)
	if err != nil {
		p.logger.Debug("telemetry: failed to create histogram", map[string]interface{}{"metric": name, "error": err.Error()})
		return nil
	}
	p.histograms[name] = h
	return h
}

func (p *Provider) counterFor(name string) metric.Float64Counter {
	p.instrMu.Lock()
	defer p.instrMu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c, err := p.meter.Float64Counter(name)
	if err != nil {
		p.logger.Debug("telemetry: failed to create counter", map[string]interface{}{"metric": name, "error": err.Error()})
		return nil
	}
	p.counters[name] = c
	return c
}

// Shutdown flushes pending spans and metrics and stops the export pipelines.
// Idempotent: safe to call multiple times (e.g. once from a signal handler
// and once from a deferred cleanup).
func (p *Provider) Shutdown(ctx context.Context) error {
	var shutdownErr error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()

		var errs []error
		if p.metricProvider != nil {
			if err := p.metricProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metric provider: %w", err))
			}
		}
		if p.traceProvider != nil {
			if err := p.traceProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("trace provider: %w", err))
			}
		}
		if len(errs) > 0 {
			shutdownErr = fmt.Errorf("telemetry shutdown errors: %v", errs)
			p.logger.Error("telemetry shutdown completed with errors", map[string]interface{}{"error": shutdownErr.Error()})
		}
	})
	return shutdownErr
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}
