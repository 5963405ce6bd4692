package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestSubmissionsByOutcome(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Submissions.Add(ctx, 1, Outcome(OutcomeOK))
	m.Submissions.Add(ctx, 1, Outcome(OutcomeOK))
	m.Submissions.Add(ctx, 1, Outcome(OutcomeService))

	got := findMetric(t, reader, "signlens.submissions")
	if got == nil {
		t.Fatal("signlens.submissions not collected")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[v.AsString()] = dp.Value
	}
	if counts[OutcomeOK] != 2 || counts[OutcomeService] != 1 {
		t.Errorf("counts = %v, want ok=2 service_error=1", counts)
	}
}

func TestEncodeDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.EncodeDuration.Record(context.Background(), 0.02)

	got := findMetric(t, reader, "signlens.encode.duration")
	if got == nil {
		t.Fatal("signlens.encode.duration not collected")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("expected one observation, got %+v", hist.DataPoints)
	}
}

func TestNop(t *testing.T) {
	m := Nop()
	m.FramesCaptured.Add(context.Background(), 1)
	m.BatchSize.Record(context.Background(), 3)
}
