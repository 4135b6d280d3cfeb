package tracing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"devto-news/internal/observability"
	"devto-news/internal/observability/tracing"
)

type fakeStore struct {
	mu      sync.Mutex
	failAll bool
	failOn  map[string]bool // span name -> fail
	docs    []tracing.Document
}

func (f *fakeStore) Insert(_ context.Context, collection string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := doc.(tracing.Document)
	if f.failAll || f.failOn[d.Name] {
		return errors.New("no reachable servers")
	}
	if collection != "traces" {
		return errors.New("unexpected collection " + collection)
	}
	f.docs = append(f.docs, d)
	return nil
}

func spanContext(t *testing.T, traceID, spanID string) trace.SpanContext {
	t.Helper()
	tid, err := trace.TraceIDFromHex(traceID)
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex(spanID)
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	})
}

func sampleSpan(t *testing.T, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(120 * time.Millisecond)

	stub := tracetest.SpanStub{
		Name:        name,
		SpanContext: spanContext(t, "0102030405060708090a0b0c0d0e0f10", "0102030405060708"),
		Parent:      spanContext(t, "0102030405060708090a0b0c0d0e0f10", "1112131415161718"),
		SpanKind:    trace.SpanKindClient,
		StartTime:   start,
		EndTime:     end,
		Attributes: []attribute.KeyValue{
			attribute.String("http.method", "GET"),
			attribute.Int("devto.per_page", 5),
			attribute.StringSlice("devto.tags", []string{"go", "web"}),
		},
		Events: []sdktrace.Event{
			{
				Name:       "request.sent",
				Time:       start.Add(10 * time.Millisecond),
				Attributes: []attribute.KeyValue{attribute.Int("attempt", 1)},
			},
			{
				Name:       "response.received",
				Time:       start.Add(100 * time.Millisecond),
				Attributes: []attribute.KeyValue{attribute.Int("http.status_code", 200)},
			},
		},
		Links: []sdktrace.Link{
			{
				SpanContext: spanContext(t, "aaaabbbbccccddddeeeeffff00001111", "aaaabbbbccccdddd"),
				Attributes:  []attribute.KeyValue{attribute.String("relation", "batch")},
			},
		},
		Status: sdktrace.Status{Code: codes.Ok},
	}
	return stub.Snapshot()
}

func newExporter(store *fakeStore, policy tracing.ExportPolicy) *tracing.StoreExporter {
	return tracing.NewStoreExporter(store, tracing.StoreExporterOptions{
		Collection: "traces",
		Policy:     policy,
		Service:    observability.ServiceInfo{Name: "devto-news-service", Version: "1.0.0"},
	})
}

func TestStoreExporter_SerializesSpan(t *testing.T) {
	store := &fakeStore{}
	exp := newExporter(store, tracing.ExportPolicyAnySuccess)

	err := exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{sampleSpan(t, "devto.fetch_articles")})
	require.NoError(t, err)
	require.Len(t, store.docs, 1)

	doc := store.docs[0]
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", doc.TraceID)
	assert.Equal(t, "0102030405060708", doc.SpanID)
	assert.Equal(t, "1112131415161718", doc.ParentSpanID)
	assert.Equal(t, "devto.fetch_articles", doc.Name)
	assert.Equal(t, "client", doc.Kind)
	assert.Equal(t, "Ok", doc.Status.Code)
	assert.Equal(t, "devto-news-service", doc.Service.Name)

	// End after start, events inside the span window.
	assert.True(t, doc.EndTime.After(doc.StartTime))
	require.Len(t, doc.Events, 2)
	for _, ev := range doc.Events {
		assert.False(t, ev.Timestamp.Before(doc.StartTime))
		assert.False(t, ev.Timestamp.After(doc.EndTime))
	}

	// Attribute order is insertion order.
	keys := make([]string, 0, len(doc.Attributes))
	for _, kv := range doc.Attributes {
		keys = append(keys, kv.Key)
	}
	assert.Equal(t, []string{"http.method", "devto.per_page", "devto.tags"}, keys)
	assert.Equal(t, "GET", doc.Attributes[0].Value)
	assert.Equal(t, int64(5), doc.Attributes[1].Value)

	require.Len(t, doc.Links, 1)
	assert.Equal(t, "aaaabbbbccccddddeeeeffff00001111", doc.Links[0].TraceID)
	assert.Equal(t, "aaaabbbbccccdddd", doc.Links[0].SpanID)
}

func TestStoreExporter_EmptyBatch(t *testing.T) {
	store := &fakeStore{}
	exp := newExporter(store, tracing.ExportPolicyAnySuccess)

	require.NoError(t, exp.ExportSpans(context.Background(), nil))
	assert.Empty(t, store.docs)
}

func TestStoreExporter_PartialFailurePolicies(t *testing.T) {
	spans := []sdktrace.ReadOnlySpan{
		sampleSpan(t, "span-ok"),
		sampleSpan(t, "span-bad"),
	}

	t.Run("any-success reports success", func(t *testing.T) {
		store := &fakeStore{failOn: map[string]bool{"span-bad": true}}
		exp := newExporter(store, tracing.ExportPolicyAnySuccess)

		assert.NoError(t, exp.ExportSpans(context.Background(), spans))
		assert.Len(t, store.docs, 1)
	})

	t.Run("all-success reports failure", func(t *testing.T) {
		store := &fakeStore{failOn: map[string]bool{"span-bad": true}}
		exp := newExporter(store, tracing.ExportPolicyAllSuccess)

		err := exp.ExportSpans(context.Background(), spans)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exported 1/2 spans")
	})

	t.Run("total failure always reported", func(t *testing.T) {
		store := &fakeStore{failAll: true}
		exp := newExporter(store, tracing.ExportPolicyAnySuccess)

		assert.Error(t, exp.ExportSpans(context.Background(), spans))
	})
}

func TestStoreExporter_ShutdownStopsExports(t *testing.T) {
	store := &fakeStore{}
	exp := newExporter(store, tracing.ExportPolicyAnySuccess)

	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{sampleSpan(t, "late")}))
	assert.Empty(t, store.docs)
}

func TestDocument_BSONRoundTrip(t *testing.T) {
	store := &fakeStore{}
	exp := newExporter(store, tracing.ExportPolicyAnySuccess)
	require.NoError(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{sampleSpan(t, "roundtrip")}))
	require.Len(t, store.docs, 1)
	original := store.docs[0]

	raw, err := bson.Marshal(original)
	require.NoError(t, err)

	var decoded tracing.Document
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	assert.Equal(t, original.TraceID, decoded.TraceID)
	assert.Equal(t, original.SpanID, decoded.SpanID)
	assert.Equal(t, original.ParentSpanID, decoded.ParentSpanID)
	assert.Equal(t, original.Status, decoded.Status)
	assert.True(t, original.StartTime.Equal(decoded.StartTime))
	assert.True(t, original.EndTime.Equal(decoded.EndTime))

	// Sequences keep their order and cardinality through serialization.
	require.Len(t, decoded.Attributes, len(original.Attributes))
	for i := range original.Attributes {
		assert.Equal(t, original.Attributes[i].Key, decoded.Attributes[i].Key)
	}
	require.Len(t, decoded.Events, len(original.Events))
	for i := range original.Events {
		assert.Equal(t, original.Events[i].Name, decoded.Events[i].Name)
		assert.Empty(t, cmp.Diff(
			attributeKeys(original.Events[i].Attributes),
			attributeKeys(decoded.Events[i].Attributes),
		))
	}
	require.Len(t, decoded.Links, len(original.Links))
	assert.Equal(t, original.Links[0].TraceID, decoded.Links[0].TraceID)
}

func attributeKeys(kvs []tracing.KeyValue) []string {
	keys := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		keys = append(keys, kv.Key)
	}
	return keys
}
