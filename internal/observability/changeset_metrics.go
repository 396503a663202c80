package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ChangesetMetrics holds custom metrics for changeset statements.
type ChangesetMetrics struct {
	statementCounter metric.Int64Counter
	failureCounter   metric.Int64Counter
	durationHist     metric.Float64Histogram
}

// InitChangesetMetrics initializes changeset metrics.
func InitChangesetMetrics() (*ChangesetMetrics, error) {
	meter := otel.Meter(meterName)

	statementCounter, err := meter.Int64Counter(
		"changeset.statements.total",
		metric.WithDescription("Total number of statements issued while saving changesets"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create changeset statement counter: %w", err)
	}

	failureCounter, err := meter.Int64Counter(
		"changeset.failures.total",
		metric.WithDescription("Total number of failed changeset statements"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create changeset failure counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"changeset.statement.duration",
		metric.WithDescription("Duration of changeset statements in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create changeset duration histogram: %w", err)
	}

	return &ChangesetMetrics{
		statementCounter: statementCounter,
		failureCounter:   failureCounter,
		durationHist:     durationHist,
	}, nil
}

// RecordStatement records one statement of a changeset step against table.
func (m *ChangesetMetrics) RecordStatement(ctx context.Context, table, step string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("table", table),
		attribute.String("step", step),
	}
	m.statementCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.failureCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
