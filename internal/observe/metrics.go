// Package observe provides the OpenTelemetry metric instruments used by
// signlens and the Prometheus bridge that exposes them on /metrics.
//
// Tests should build a [Metrics] from their own MeterProvider (or use
// [Nop]) to avoid sharing global state between test cases.
package observe

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/teslashibe/go-signlens"

// Submission outcomes recorded on the Submissions counter.
const (
	OutcomeOK         = "ok"
	OutcomeService    = "service_error"
	OutcomeUnexpected = "unexpected"
	OutcomeEmpty      = "empty_batch"
)

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// FramesCaptured counts frames appended to a batch.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts ticks that produced no frame. Use with
	// attribute.String("reason", ...).
	FramesDropped metric.Int64Counter

	// EncodeDuration tracks scale + PNG + base64 time per frame.
	EncodeDuration metric.Float64Histogram

	// Submissions counts batch submissions. Use with
	// attribute.String("outcome", ...).
	Submissions metric.Int64Counter

	// SubmitDuration tracks the interpretation call latency.
	SubmitDuration metric.Float64Histogram

	// BatchSize records the number of frames per submitted batch.
	BatchSize metric.Int64Histogram
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesCaptured, err = m.Int64Counter("signlens.frames.captured",
		metric.WithDescription("Frames encoded and appended to the current batch."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("signlens.frames.dropped",
		metric.WithDescription("Capture ticks that did not produce a frame, by reason."),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("signlens.encode.duration",
		metric.WithDescription("Time to scale and encode one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Submissions, err = m.Int64Counter("signlens.submissions",
		metric.WithDescription("Batch submissions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SubmitDuration, err = m.Float64Histogram("signlens.submit.duration",
		metric.WithDescription("Latency of the interpretation request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BatchSize, err = m.Int64Histogram("signlens.batch.size",
		metric.WithDescription("Frames per submitted batch."),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 30, 60, 120),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Nop returns instruments that record nothing.
func Nop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// The noop provider never fails instrument creation.
		panic(err)
	}
	return m
}

// Outcome returns the attribute option for a submission outcome.
func Outcome(outcome string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("outcome", outcome))
}

// Reason returns the attribute option for a dropped-frame reason.
func Reason(reason string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("reason", reason))
}
