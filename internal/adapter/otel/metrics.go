package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "protoloop"

// Metrics holds the pipeline metric instruments.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsFailed    metric.Int64Counter
	Iterations    metric.Int64Counter
	Repairs       metric.Int64Counter
	RunDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("protoloop.runs.started",
		metric.WithDescription("Number of pipeline runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("protoloop.runs.completed",
		metric.WithDescription("Number of pipeline runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("protoloop.runs.failed",
		metric.WithDescription("Number of pipeline runs failed"))
	if err != nil {
		return nil, err
	}

	m.Iterations, err = meter.Int64Counter("protoloop.iterations",
		metric.WithDescription("Number of generate+review iterations"))
	if err != nil {
		return nil, err
	}

	m.Repairs, err = meter.Int64Counter("protoloop.extract.repairs",
		metric.WithDescription("Number of responses needing JSON repair beyond direct parse"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("protoloop.run.duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
