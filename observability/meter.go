package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/resolvekit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Resolve outcomes recorded by RecordResolve.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// Metrics holds the container's metric instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	resolveTotal    metric.Int64Counter
	resolveErrors   metric.Int64Counter
	resolveDuration metric.Float64Histogram
	compileTotal    metric.Int64Counter
	compileHits     metric.Int64Counter
	compileDuration metric.Float64Histogram
	scopeActive     metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	resolveTotal, err := meter.Int64Counter("resolvekit.resolve.total",
		metric.WithDescription("Total number of resolve calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.resolve.total counter: %w", err)
	}

	resolveErrors, err := meter.Int64Counter("resolvekit.resolve.errors",
		metric.WithDescription("Failed resolve calls by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.resolve.errors counter: %w", err)
	}

	resolveDuration, err := meter.Float64Histogram("resolvekit.resolve.duration",
		metric.WithDescription("Duration of resolve calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.resolve.duration histogram: %w", err)
	}

	compileTotal, err := meter.Int64Counter("resolvekit.compile.total",
		metric.WithDescription("Targets compiled by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.compile.total counter: %w", err)
	}

	compileHits, err := meter.Int64Counter("resolvekit.compile.cache_hits",
		metric.WithDescription("Compiled factory cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.compile.cache_hits counter: %w", err)
	}

	compileDuration, err := meter.Float64Histogram("resolvekit.compile.duration",
		metric.WithDescription("Duration of target compilation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.compile.duration histogram: %w", err)
	}

	scopeActive, err := meter.Int64UpDownCounter("resolvekit.scope.active",
		metric.WithDescription("Number of live scopes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resolvekit.scope.active gauge: %w", err)
	}

	return &Metrics{
		resolveTotal:    resolveTotal,
		resolveErrors:   resolveErrors,
		resolveDuration: resolveDuration,
		compileTotal:    compileTotal,
		compileHits:     compileHits,
		compileDuration: compileDuration,
		scopeActive:     scopeActive,
	}, nil
}

// RecordResolve records a completed resolve call.
func (m *Metrics) RecordResolve(ctx context.Context, typ, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.resolveTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", typ),
		attribute.String("status", status),
	))
	m.resolveDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("type", typ),
	))
}

// RecordResolveError records a failed resolve call by error code.
func (m *Metrics) RecordResolveError(ctx context.Context, typ, code string) {
	if m == nil {
		return
	}
	m.resolveErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", typ),
		attribute.String("code", code),
	))
}

// RecordCompile records a target compilation.
func (m *Metrics) RecordCompile(ctx context.Context, kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.compileTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.compileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordCompileCacheHit records a compiled factory served from the cache.
func (m *Metrics) RecordCompileCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.compileHits.Add(ctx, 1)
}

// ScopeCreated increments the live scope count.
func (m *Metrics) ScopeCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.scopeActive.Add(ctx, 1)
}

// ScopeDisposed decrements the live scope count.
func (m *Metrics) ScopeDisposed(ctx context.Context) {
	if m == nil {
		return
	}
	m.scopeActive.Add(ctx, -1)
}
