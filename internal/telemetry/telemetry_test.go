package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitDisabled(t *testing.T) {
	cleanup, err := Init(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if cleanup == nil {
		t.Fatalf("expected cleanup func")
	}
	cleanup()
}

func TestInitWritesSpans(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	dir := t.TempDir()
	opts := Options{
		TraceFile:   filepath.Join(dir, "traces.log"),
		MetricsFile: filepath.Join(dir, "metrics.log"),
		Version:     "test",
	}
	cleanup, err := Init(context.Background(), opts)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "digest")
	span.End()

	counter, err := otel.Meter("test").Int64Counter("sdig.test")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 2)

	cleanup()

	traces, err := os.ReadFile(opts.TraceFile)
	if err != nil {
		t.Fatalf("read traces: %v", err)
	}
	if !strings.Contains(string(traces), `"Name":"digest"`) {
		t.Errorf("span not exported: %s", traces)
	}

	metrics, err := os.ReadFile(opts.MetricsFile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), "sdig.test") {
		t.Errorf("metric not exported: %s", metrics)
	}
}

func TestInitFailureLeavesGlobalsAlone(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cleanup, err := Init(context.Background(), Options{
		TraceFile:   filepath.Join(dir, "traces.log"),
		MetricsFile: filepath.Join(blocker, "metrics.log"),
	})
	if err == nil {
		cleanup()
		t.Fatalf("expected error for unusable metrics path")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Errorf("tracer provider installed despite failed init")
	}
	if otel.GetMeterProvider() != prevMP {
		t.Errorf("meter provider installed despite failed init")
	}
}
