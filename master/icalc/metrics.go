package icalc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "trapezoid.dev/integral/icalc"

// metrics are the OpenTelemetry instruments of a Calc.
type metrics struct {
	evaluations metric.Int64Counter
	latency     metric.Float64Histogram
	intervals   metric.Int64Histogram
	exact       metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	evaluations, err := meter.Int64Counter("integral.evaluations",
		metric.WithDescription("Number of integral evaluations by outcome"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("integral.evaluation.latency_ms",
		metric.WithDescription("Integral evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	intervals, err := meter.Int64Histogram("integral.intervals",
		metric.WithDescription("Number of sub-intervals per evaluation"),
	)
	if err != nil {
		return nil, err
	}

	exact, err := meter.Int64Counter("integral.exact",
		metric.WithDescription("Successful evaluations by availability of the exact value"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		evaluations: evaluations,
		latency:     latency,
		intervals:   intervals,
		exact:       exact,
	}, nil
}

func (m *metrics) recordEvaluation(ctx context.Context, source string, err error, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", Kind(err)),
	)
	m.evaluations.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *metrics) recordReport(ctx context.Context, r Report) {
	m.intervals.Record(ctx, int64(r.Intervals))
	m.exact.Add(ctx, 1, metric.WithAttributes(attribute.Bool("available", r.Exact != nil)))
}
