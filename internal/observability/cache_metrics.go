package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics holds custom metrics for schema cache behavior.
type CacheMetrics struct {
	hitCounter      metric.Int64Counter
	missCounter     metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	lastSuccessUnix atomic.Int64
}

// InitCacheMetrics initializes schema cache metrics.
func InitCacheMetrics(logger *slog.Logger) (*CacheMetrics, error) {
	meter := otel.Meter(meterName)

	hitCounter, err := meter.Int64Counter(
		"schema.cache.hits.total",
		metric.WithDescription("Total number of schema cache lookups served from memory"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache hit counter: %w", err)
	}

	missCounter, err := meter.Int64Counter(
		"schema.cache.misses.total",
		metric.WithDescription("Total number of schema cache lookups that required population"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache miss counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"schema.cache.errors.total",
		metric.WithDescription("Total number of failed schema cache populations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache error counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"schema.cache.population.duration",
		metric.WithDescription("Duration of schema cache populations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache duration histogram: %w", err)
	}

	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"schema.cache.last_population_unix",
		metric.WithDescription("Unix timestamp of the last successful schema cache population"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache last population gauge: %w", err)
	}

	metrics := &CacheMetrics{
		hitCounter:   hitCounter,
		missCounter:  missCounter,
		errorCounter: errorCounter,
		durationHist: durationHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			value := metrics.lastSuccessUnix.Load()
			if value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
			}
			return nil
		},
		lastSuccessGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema cache gauge callback: %w", err)
	}

	logger.Info("schema cache metrics initialized")
	return metrics, nil
}

// RecordLookup records a cache lookup for the given kind ("tables" or "windows").
func (m *CacheMetrics) RecordLookup(ctx context.Context, kind string, hit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	if hit {
		m.hitCounter.Add(ctx, 1, attrs)
		return
	}
	m.missCounter.Add(ctx, 1, attrs)
}

// RecordPopulation records one cache population attempt.
func (m *CacheMetrics) RecordPopulation(ctx context.Context, kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.Bool("success", err == nil),
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		return
	}
	m.lastSuccessUnix.Store(time.Now().Unix())
}
