package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	TraceFile   string
	MetricsFile string
	Version     string
}

// Enabled reports whether any exporter is configured.
func (o Options) Enabled() bool {
	return o.TraceFile != "" || o.MetricsFile != ""
}

// Init installs global tracer and meter providers that export to rotating
// files. With no files configured the global no-op providers stay in place.
// The returned cleanup flushes and closes everything that was set up.
func Init(ctx context.Context, opts Options) (func(), error) {
	if !opts.Enabled() {
		return func() {}, nil
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("sdig"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var (
		shutdowns []func(context.Context) error
		tp        *sdktrace.TracerProvider
		mp        *sdkmetric.MeterProvider
	)
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil {
				slog.Error("telemetry shutdown", "error", err)
			}
		}
	}
	// providers are installed globally only once every exporter is up
	fail := func(err error) (func(), error) {
		shutdown()
		return nil, err
	}

	if opts.TraceFile != "" {
		traceFile, err := rotatingFile(opts.TraceFile)
		if err != nil {
			return fail(err)
		}
		shutdowns = append(shutdowns, closeFunc(traceFile))
		exp, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
		if err != nil {
			return fail(fmt.Errorf("create trace exporter: %w", err))
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		// flush before the file closes
		shutdowns = append([]func(context.Context) error{tp.Shutdown}, shutdowns...)
	}

	if opts.MetricsFile != "" {
		metricsFile, err := rotatingFile(opts.MetricsFile)
		if err != nil {
			return fail(err)
		}
		shutdowns = append(shutdowns, closeFunc(metricsFile))
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
		if err != nil {
			return fail(fmt.Errorf("create metric exporter: %w", err))
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))),
			sdkmetric.WithResource(res),
		)
		shutdowns = append([]func(context.Context) error{mp.Shutdown}, shutdowns...)
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
	}
	if mp != nil {
		otel.SetMeterProvider(mp)
	}
	return shutdown, nil
}

func rotatingFile(path string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}, nil
}

func closeFunc(l *lumberjack.Logger) func(context.Context) error {
	return func(context.Context) error { return l.Close() }
}
