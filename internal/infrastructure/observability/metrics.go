package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the HTTP and triage instruments. A nil *Metrics is valid and
// records nothing, so services can run without telemetry.
type Metrics struct {
	RequestCount    metric.Int64Counter
	RequestDuration metric.Float64Histogram
	CheckIns        metric.Int64Counter
	TriageScore     metric.Int64Histogram
	PatientsCalled  metric.Int64Counter
	Overrides       metric.Int64Counter
	Allocations     metric.Int64Counter
	DroppedRecords  metric.Int64Counter

	meter metric.Meter
}

// InitMetrics creates the instruments on the global meter provider
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

// NewMetrics creates the instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	var err error

	if m.RequestCount, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.RequestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.CheckIns, err = meter.Int64Counter("triage.checkins",
		metric.WithDescription("Patients checked into a department queue")); err != nil {
		return nil, err
	}
	if m.TriageScore, err = meter.Int64Histogram("triage.score",
		metric.WithDescription("Distribution of triage severity scores"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)); err != nil {
		return nil, err
	}
	if m.PatientsCalled, err = meter.Int64Counter("queue.patients.called",
		metric.WithDescription("Patients called from a department queue")); err != nil {
		return nil, err
	}
	if m.Overrides, err = meter.Int64Counter("emergency.overrides",
		metric.WithDescription("Emergency override attempts by type and outcome")); err != nil {
		return nil, err
	}
	if m.Allocations, err = meter.Int64Counter("allocator.executions",
		metric.WithDescription("Spare doctor assignments and releases executed")); err != nil {
		return nil, err
	}
	if m.DroppedRecords, err = meter.Int64Counter("pipeline.dropped",
		metric.WithDescription("Events or audit records dropped because a buffer was full")); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveQueueDepth registers a gauge reporting live entries per department
func (m *Metrics) ObserveQueueDepth(depths func() map[string]int) error {
	if m == nil || m.meter == nil {
		return nil
	}
	gauge, err := m.meter.Int64ObservableGauge("queue.depth",
		metric.WithDescription("Live queue entries per department"))
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for dept, n := range depths() {
			o.ObserveInt64(gauge, int64(n), metric.WithAttributes(attribute.String("department", dept)))
		}
		return nil
	}, gauge)
	return err
}

// RecordRequestMetric records one HTTP request
func RecordRequestMetric(ctx context.Context, m *Metrics, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.RequestCount.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *Metrics) RecordCheckIn(ctx context.Context, department, severityLevel string, score int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("department", department),
		attribute.String("severity_level", severityLevel),
	)
	m.CheckIns.Add(ctx, 1, attrs)
	m.TriageScore.Record(ctx, int64(score), metric.WithAttributes(attribute.String("department", department)))
}

func (m *Metrics) RecordPatientCalled(ctx context.Context, department string) {
	if m == nil {
		return
	}
	m.PatientsCalled.Add(ctx, 1, metric.WithAttributes(attribute.String("department", department)))
}

func (m *Metrics) RecordOverride(ctx context.Context, overrideType, role string, success bool) {
	if m == nil {
		return
	}
	m.Overrides.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", overrideType),
		attribute.String("role", role),
		attribute.Bool("success", success),
	))
}

func (m *Metrics) RecordAllocation(ctx context.Context, action, department string) {
	if m == nil {
		return
	}
	m.Allocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("department", department),
	))
}

func (m *Metrics) RecordDropped(ctx context.Context, pipeline string) {
	if m == nil {
		return
	}
	m.DroppedRecords.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline", pipeline)))
}
