// Package telemetry assembles the observability stack: a slog logger, a
// tracer provider and a meter provider, all exporting through the shared
// document store. When no store is available the stack degrades to
// console-only output so the service keeps serving requests.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"devto-news/internal/observability"
	"devto-news/internal/observability/logging"
	"devto-news/internal/observability/metrics"
	"devto-news/internal/observability/tracing"
)

// Options configures the telemetry stack.
type Options struct {
	Service observability.ServiceInfo

	// LogLevel is the minimum severity for both console output and storage.
	LogLevel slog.Level

	// FlushInterval is the metric collection cadence.
	FlushInterval time.Duration

	// TraceExportPolicy controls how partially failed span batches are
	// reported to the SDK.
	TraceExportPolicy tracing.ExportPolicy

	LogCollection    string
	TraceCollection  string
	MetricCollection string
}

// Telemetry holds the assembled providers and their shutdown hooks.
type Telemetry struct {
	// Logger is the application logger. It is also installed as the slog
	// default.
	Logger *slog.Logger

	// Instruments are the application counters, registered on the global
	// meter provider.
	Instruments *metrics.Instruments

	// Reader drives periodic metric export. Nil in console-only mode; the
	// caller runs it only when present.
	Reader *metrics.Reader

	shutdownFuncs []func(context.Context) error
}

// Setup installs the logger, tracer provider and meter provider as process
// globals and returns their handle. A nil store selects console-only mode:
// logs go to stdout, spans are sampled but not exported, counters accumulate
// without a reader.
func Setup(ctx context.Context, store observability.Inserter, opts Options) (*Telemetry, error) {
	t := &Telemetry{}

	console := logging.NewConsoleHandler(opts.LogLevel)
	if store != nil {
		t.Logger = slog.New(logging.NewStoreHandler(console, store, logging.StoreHandlerOptions{
			Collection: opts.LogCollection,
			Level:      opts.LogLevel,
			Service:    opts.Service,
		}))
	} else {
		t.Logger = slog.New(console)
	}
	slog.SetDefault(t.Logger)

	res := opts.Service.Resource()

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if store != nil {
		exporter := tracing.NewStoreExporter(store, tracing.StoreExporterOptions{
			Collection: opts.TraceCollection,
			Policy:     opts.TraceExportPolicy,
			Service:    opts.Service,
		})
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.shutdownFuncs = append(t.shutdownFuncs, tp.Shutdown)

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if store != nil {
		exporter := metrics.NewStoreExporter(store, metrics.StoreExporterOptions{
			Collection: opts.MetricCollection,
			Service:    opts.Service,
		})
		t.Reader = metrics.NewReader(exporter, opts.FlushInterval, t.Logger)
		meterOpts = append(meterOpts, sdkmetric.WithReader(t.Reader.SDKReader()))
	}
	mp := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(mp)
	t.shutdownFuncs = append(t.shutdownFuncs, mp.Shutdown)

	instruments, err := metrics.NewInstruments(mp.Meter("devto-news"))
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.Shutdown(shutdownCtx)
		return nil, fmt.Errorf("register instruments: %w", err)
	}
	t.Instruments = instruments

	if err := ctx.Err(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.Shutdown(shutdownCtx)
		return nil, err
	}
	return t, nil
}

// Shutdown flushes and stops all providers in registration order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown: %v", errs)
	}
	return nil
}
