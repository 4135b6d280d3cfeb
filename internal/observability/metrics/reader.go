package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// drainTimeout bounds the final flush performed on shutdown.
const drainTimeout = 10 * time.Second

// Reader is the timed driver of metric export. It pulls a point-in-time
// snapshot of every registered instrument on a fixed interval and forwards
// it to the exporter. Collection cadence is thereby decoupled from request
// cadence: requests only touch in-memory counters, durability happens at the
// next tick.
type Reader struct {
	manual   *sdkmetric.ManualReader
	exporter sdkmetric.Exporter
	interval time.Duration
	logger   *slog.Logger
}

// NewReader creates a Reader flushing through exporter every interval.
func NewReader(exporter sdkmetric.Exporter, interval time.Duration, logger *slog.Logger) *Reader {
	manual := sdkmetric.NewManualReader(
		sdkmetric.WithTemporalitySelector(exporter.Temporality),
		sdkmetric.WithAggregationSelector(exporter.Aggregation),
	)
	return &Reader{
		manual:   manual,
		exporter: exporter,
		interval: interval,
		logger:   logger,
	}
}

// SDKReader exposes the underlying reader for meter provider registration.
func (r *Reader) SDKReader() sdkmetric.Reader {
	return r.manual
}

// Run flushes on every tick until the context is cancelled, then performs a
// final drain so counters accumulated since the last tick are not lost on a
// clean shutdown. A failed flush is logged and otherwise ignored: cumulative
// temporality means the snapshot at the next tick still carries the values,
// so only their durable reflection is delayed.
func (r *Reader) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("metric reader started", slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			if err := r.Flush(drainCtx); err != nil {
				r.logger.Warn("final metric flush failed",
					slog.String("logger", "metrics.reader"),
					slog.Any("error", err))
			}
			r.logger.Info("metric reader stopped")
			return nil
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Warn("metric flush failed, values retained for next tick",
					slog.String("logger", "metrics.reader"),
					slog.Any("error", err))
			}
		}
	}
}

// Flush collects the current snapshot and exports it.
func (r *Reader) Flush(ctx context.Context) error {
	var rm metricdata.ResourceMetrics
	if err := r.manual.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	if err := r.exporter.Export(ctx, &rm); err != nil {
		return fmt.Errorf("export metrics: %w", err)
	}
	return nil
}
