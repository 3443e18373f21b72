package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestBatchRoundSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartBatchRoundSpan(context.Background(), "r-1", 3, 1)
	EndRoundSpan(span, "suppress", errors.New("channel down"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "round.batch" {
		t.Fatalf("span name = %q", s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", s.Status())
	}
	want := map[attribute.Key]string{"round.id": "r-1", "round.outcome": "suppress"}
	for _, kv := range s.Attributes() {
		if v, ok := want[kv.Key]; ok && kv.Value.AsString() != v {
			t.Fatalf("%s = %q, want %q", kv.Key, kv.Value.AsString(), v)
		}
	}
}

func TestFrameRoundSpanOK(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartFrameRoundSpan(context.Background(), "r-2", "f-1", "host-a")
	EndRoundSpan(span, "safe", nil)

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "round.frame" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	if spans[0].Status().Code == codes.Error {
		t.Fatal("successful round must not carry error status")
	}
}

func TestMetricsRecordRound(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordRound(ctx, "batch", "suppress", time.Now(), true, false)
	m.RecordRound(ctx, "batch", "proceed", time.Now(), false, false)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[md.Name] += dp.Value
				}
			}
		}
	}
	if totals["gate.rounds"] != 2 || totals["gate.decisions"] != 2 || totals["gate.channel_errors"] != 1 {
		t.Fatalf("unexpected totals: %v", totals)
	}
}

func TestRecordRoundNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordRound(context.Background(), "frame", "deny", time.Now(), false, true)
}

func TestSetupDisabled(t *testing.T) {
	t.Setenv(EndpointEnv, "")
	shutdown, err := Setup(context.Background(), "decision-gate")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
