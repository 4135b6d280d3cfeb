// Package metrics provides the application counters, the metric exporter
// that persists collected datapoints as documents, and the periodic reader
// that drives collection.
package metrics

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"devto-news/internal/observability"
)

// Point is the persisted form of one metric datapoint. Counters are
// cumulative: the stored value for an attribute set is non-decreasing across
// flushes until the process restarts.
type Point struct {
	Name        string                    `bson:"name"`
	Description string                    `bson:"description,omitempty"`
	Unit        string                    `bson:"unit,omitempty"`
	Kind        string                    `bson:"kind"`
	Monotonic   bool                      `bson:"monotonic,omitempty"`
	Value       any                       `bson:"value,omitempty"`
	Histogram   *HistogramValue           `bson:"histogram,omitempty"`
	Attributes  map[string]any            `bson:"attributes"`
	StartTime   time.Time                 `bson:"start_time"`
	Time        time.Time                 `bson:"time"`
	Scope       ScopeInfo                 `bson:"scope"`
	Service     observability.ServiceInfo `bson:"service"`
}

// Point kinds.
const (
	KindCounter   = "counter"
	KindGauge     = "gauge"
	KindHistogram = "histogram"
)

// HistogramValue carries the bucketed aggregation of a histogram datapoint.
type HistogramValue struct {
	Count        uint64    `bson:"count"`
	Sum          float64   `bson:"sum"`
	Min          *float64  `bson:"min,omitempty"`
	Max          *float64  `bson:"max,omitempty"`
	Bounds       []float64 `bson:"bounds"`
	BucketCounts []uint64  `bson:"bucket_counts"`
}

// ScopeInfo identifies the instrumentation scope that produced the metric.
type ScopeInfo struct {
	Name    string `bson:"name"`
	Version string `bson:"version,omitempty"`
}

// StoreExporterOptions configures a StoreExporter.
type StoreExporterOptions struct {
	Collection string
	Service    observability.ServiceInfo
}

// StoreExporter implements sdkmetric.Exporter, writing one document per
// datapoint so a single failed insert never voids the rest of the snapshot.
// Temporality is cumulative, matching the at-least-once delivery model: a
// failed flush only delays the durable value, the next one carries it.
type StoreExporter struct {
	store      observability.Inserter
	collection string
	service    observability.ServiceInfo
	stopped    atomic.Bool
}

var _ sdkmetric.Exporter = (*StoreExporter)(nil)

// NewStoreExporter creates a metric exporter writing through store.
func NewStoreExporter(store observability.Inserter, opts StoreExporterOptions) *StoreExporter {
	collection := opts.Collection
	if collection == "" {
		collection = "metrics"
	}
	return &StoreExporter{
		store:      store,
		collection: collection,
		service:    opts.Service,
	}
}

// Temporality always selects cumulative aggregation.
func (e *StoreExporter) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

// Aggregation returns the SDK default aggregation for the instrument kind.
func (e *StoreExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

// Export persists every datapoint in the snapshot. It fails only when no
// insert succeeded; with cumulative temporality the reader loses nothing by
// treating a partial write as delivered, since the next flush repeats the
// missing values.
func (e *StoreExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if e.stopped.Load() || rm == nil {
		return nil
	}

	var succeeded, failed int
	var lastErr error
	for _, scope := range rm.ScopeMetrics {
		scopeInfo := ScopeInfo{Name: scope.Scope.Name, Version: scope.Scope.Version}
		for _, m := range scope.Metrics {
			for _, point := range e.points(m, scopeInfo) {
				if err := e.store.Insert(ctx, e.collection, point); err != nil {
					failed++
					lastErr = err
					fmt.Fprintf(os.Stderr, "telemetry: metric %s not persisted: %v\n", point.Name, err)
					continue
				}
				succeeded++
			}
		}
	}

	if failed > 0 && succeeded == 0 {
		return fmt.Errorf("no metric points persisted (%d failed): %w", failed, lastErr)
	}
	return nil
}

// ForceFlush is a no-op; the exporter holds no buffer.
func (e *StoreExporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

// Shutdown marks the exporter stopped.
func (e *StoreExporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (e *StoreExporter) points(m metricdata.Metrics, scope ScopeInfo) []Point {
	base := Point{
		Name:        m.Name,
		Description: m.Description,
		Unit:        m.Unit,
		Scope:       scope,
		Service:     e.service,
	}

	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		return sumPoints(base, data)
	case metricdata.Sum[float64]:
		return sumPoints(base, data)
	case metricdata.Gauge[int64]:
		return gaugePoints(base, data.DataPoints)
	case metricdata.Gauge[float64]:
		return gaugePoints(base, data.DataPoints)
	case metricdata.Histogram[int64]:
		return histogramPoints(base, data.DataPoints)
	case metricdata.Histogram[float64]:
		return histogramPoints(base, data.DataPoints)
	default:
		// Exotic aggregations (exponential histograms, summaries) are not
		// produced by this service's instruments.
		fmt.Fprintf(os.Stderr, "telemetry: metric %s has unsupported aggregation %T; dropped\n", m.Name, m.Data)
		return nil
	}
}

func sumPoints[N int64 | float64](base Point, sum metricdata.Sum[N]) []Point {
	kind := KindCounter
	if !sum.IsMonotonic {
		kind = KindGauge
	}
	out := make([]Point, 0, len(sum.DataPoints))
	for _, dp := range sum.DataPoints {
		p := base
		p.Kind = kind
		p.Monotonic = sum.IsMonotonic
		p.Value = dp.Value
		p.Attributes = attributeMap(dp.Attributes)
		p.StartTime = dp.StartTime.UTC()
		p.Time = dp.Time.UTC()
		out = append(out, p)
	}
	return out
}

func gaugePoints[N int64 | float64](base Point, dps []metricdata.DataPoint[N]) []Point {
	out := make([]Point, 0, len(dps))
	for _, dp := range dps {
		p := base
		p.Kind = KindGauge
		p.Value = dp.Value
		p.Attributes = attributeMap(dp.Attributes)
		p.StartTime = dp.StartTime.UTC()
		p.Time = dp.Time.UTC()
		out = append(out, p)
	}
	return out
}

func histogramPoints[N int64 | float64](base Point, dps []metricdata.HistogramDataPoint[N]) []Point {
	out := make([]Point, 0, len(dps))
	for _, dp := range dps {
		h := &HistogramValue{
			Count:        dp.Count,
			Sum:          float64(dp.Sum),
			Bounds:       dp.Bounds,
			BucketCounts: dp.BucketCounts,
		}
		if v, ok := dp.Min.Value(); ok {
			f := float64(v)
			h.Min = &f
		}
		if v, ok := dp.Max.Value(); ok {
			f := float64(v)
			h.Max = &f
		}

		p := base
		p.Kind = KindHistogram
		p.Histogram = h
		p.Attributes = attributeMap(dp.Attributes)
		p.StartTime = dp.StartTime.UTC()
		p.Time = dp.Time.UTC()
		out = append(out, p)
	}
	return out
}

func attributeMap(set attribute.Set) map[string]any {
	m := make(map[string]any, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
