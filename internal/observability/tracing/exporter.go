package tracing

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"devto-news/internal/observability"
)

// Document is the persisted form of one finished span. Attribute, event and
// link sequences keep their insertion order; identifiers are stored as hex
// strings and timestamps as absolute UTC times.
type Document struct {
	TraceID      string                    `bson:"trace_id"`
	SpanID       string                    `bson:"span_id"`
	ParentSpanID string                    `bson:"parent_span_id,omitempty"`
	TraceState   string                    `bson:"trace_state,omitempty"`
	Name         string                    `bson:"name"`
	Kind         string                    `bson:"kind"`
	StartTime    time.Time                 `bson:"start_time"`
	EndTime      time.Time                 `bson:"end_time"`
	Status       StatusDocument            `bson:"status"`
	Attributes   []KeyValue                `bson:"attributes"`
	Events       []EventDocument           `bson:"events"`
	Links        []LinkDocument            `bson:"links"`
	Service      observability.ServiceInfo `bson:"service"`
}

// StatusDocument captures the span's final status.
type StatusDocument struct {
	Code        string `bson:"code"`
	Description string `bson:"description,omitempty"`
}

// EventDocument is one span event with its own ordered attributes.
type EventDocument struct {
	Name       string     `bson:"name"`
	Timestamp  time.Time  `bson:"timestamp"`
	Attributes []KeyValue `bson:"attributes"`
}

// LinkDocument references a span in another trace.
type LinkDocument struct {
	TraceID    string     `bson:"trace_id"`
	SpanID     string     `bson:"span_id"`
	Attributes []KeyValue `bson:"attributes"`
}

// KeyValue is an order-preserving attribute pair. Values are scalars or
// arrays of scalars, as produced by the SDK.
type KeyValue struct {
	Key   string `bson:"key"`
	Value any    `bson:"value"`
}

// ExportPolicy controls how a partially failed batch is reported to the SDK.
type ExportPolicy string

const (
	// ExportPolicyAnySuccess reports success if at least one span in the
	// batch was persisted. Failing the whole call would make the SDK retry
	// spans that are already stored, so the skew is deliberate: not blocking
	// the caller outweighs a minority of lost spans.
	ExportPolicyAnySuccess ExportPolicy = "any-success"

	// ExportPolicyAllSuccess reports failure unless every span was persisted.
	ExportPolicyAllSuccess ExportPolicy = "all-success"
)

// StoreExporterOptions configures a StoreExporter.
type StoreExporterOptions struct {
	Collection string
	Policy     ExportPolicy
	Service    observability.ServiceInfo
}

// StoreExporter implements sdktrace.SpanExporter, serializing each finished
// span to a Document and writing it individually so that one bad span never
// voids the rest of the batch.
type StoreExporter struct {
	store      observability.Inserter
	collection string
	policy     ExportPolicy
	service    observability.ServiceInfo
	stopped    atomic.Bool
}

var _ sdktrace.SpanExporter = (*StoreExporter)(nil)

// NewStoreExporter creates a span exporter writing through store.
func NewStoreExporter(store observability.Inserter, opts StoreExporterOptions) *StoreExporter {
	collection := opts.Collection
	if collection == "" {
		collection = "traces"
	}
	policy := opts.Policy
	if policy == "" {
		policy = ExportPolicyAnySuccess
	}
	return &StoreExporter{
		store:      store,
		collection: collection,
		policy:     policy,
		service:    opts.Service,
	}
}

// ExportSpans persists the batch one document per span. The returned error
// follows the configured ExportPolicy; individual failures are noted on
// stderr so an outage is never fully silent.
func (e *StoreExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() || len(spans) == 0 {
		return nil
	}

	var succeeded, failed int
	var lastErr error
	for _, span := range spans {
		doc := e.document(span)
		if err := e.store.Insert(ctx, e.collection, doc); err != nil {
			failed++
			lastErr = err
			fmt.Fprintf(os.Stderr, "telemetry: span %s not persisted: %v\n", doc.SpanID, err)
			continue
		}
		succeeded++
	}

	if failed == 0 {
		return nil
	}
	if e.policy == ExportPolicyAnySuccess && succeeded > 0 {
		return nil
	}
	return fmt.Errorf("exported %d/%d spans: %w", succeeded, succeeded+failed, lastErr)
}

// Shutdown marks the exporter stopped. There is no internal buffer to flush
// and the storage connection is owned elsewhere.
func (e *StoreExporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (e *StoreExporter) document(span sdktrace.ReadOnlySpan) Document {
	sc := span.SpanContext()

	doc := Document{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		TraceState: sc.TraceState().String(),
		Name:       span.Name(),
		Kind:       span.SpanKind().String(),
		StartTime:  span.StartTime().UTC(),
		EndTime:    span.EndTime().UTC(),
		Status: StatusDocument{
			Code:        span.Status().Code.String(),
			Description: span.Status().Description,
		},
		Attributes: keyValues(span.Attributes()),
		Events:     events(span.Events()),
		Links:      links(span.Links()),
		Service:    e.service,
	}
	if parent := span.Parent(); parent.HasSpanID() {
		doc.ParentSpanID = parent.SpanID().String()
	}
	return doc
}

func events(in []sdktrace.Event) []EventDocument {
	out := make([]EventDocument, 0, len(in))
	for _, ev := range in {
		out = append(out, EventDocument{
			Name:       ev.Name,
			Timestamp:  ev.Time.UTC(),
			Attributes: keyValues(ev.Attributes),
		})
	}
	return out
}

func links(in []sdktrace.Link) []LinkDocument {
	out := make([]LinkDocument, 0, len(in))
	for _, link := range in {
		out = append(out, LinkDocument{
			TraceID:    link.SpanContext.TraceID().String(),
			SpanID:     link.SpanContext.SpanID().String(),
			Attributes: keyValues(link.Attributes),
		})
	}
	return out
}

func keyValues(in []attribute.KeyValue) []KeyValue {
	out := make([]KeyValue, 0, len(in))
	for _, kv := range in {
		out = append(out, KeyValue{
			Key:   string(kv.Key),
			Value: kv.Value.AsInterface(),
		})
	}
	return out
}
