package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"

	"devto-news/internal/observability"
	"devto-news/pkg/requestid"
)

// Document is the persisted form of one log record.
type Document struct {
	Timestamp  time.Time                 `bson:"timestamp"`
	Level      string                    `bson:"level"`
	Message    string                    `bson:"message"`
	Logger     string                    `bson:"logger,omitempty"`
	Source     *SourceLocation           `bson:"source,omitempty"`
	RequestID  string                    `bson:"request_id,omitempty"`
	TraceID    string                    `bson:"trace_id,omitempty"`
	SpanID     string                    `bson:"span_id,omitempty"`
	Attributes map[string]any            `bson:"attributes,omitempty"`
	Service    observability.ServiceInfo `bson:"service"`
}

// SourceLocation records where the log statement was emitted.
type SourceLocation struct {
	Function string `bson:"function,omitempty"`
	File     string `bson:"file,omitempty"`
	Line     int    `bson:"line,omitempty"`
}

// LoggerKey is the attribute key lifted into the document's Logger field,
// naming the component that emitted the record.
const LoggerKey = "logger"

// StoreHandlerOptions configures a StoreHandler.
type StoreHandlerOptions struct {
	// Collection is the logs collection name.
	Collection string

	// Level is the minimum severity persisted to storage. Records below it
	// still reach the wrapped console handler, subject to its own level.
	Level slog.Leveler

	// Service is stamped on every document.
	Service observability.ServiceInfo

	// Fallback receives a best-effort notice when a storage write fails.
	// Defaults to os.Stderr.
	Fallback io.Writer
}

// StoreHandler is a slog.Handler that persists each record to the telemetry
// datastore and delegates to a wrapped console handler. Storage failures are
// swallowed after a fallback notice; they never reach the caller.
type StoreHandler struct {
	inner      slog.Handler
	store      observability.Inserter
	collection string
	level      slog.Leveler
	service    observability.ServiceInfo
	fallback   io.Writer

	// attrs holds WithAttrs-accumulated attributes, keys already qualified
	// by the group path open at the time they were added.
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*StoreHandler)(nil)

// NewStoreHandler wraps inner with persistence through store.
func NewStoreHandler(inner slog.Handler, store observability.Inserter, opts StoreHandlerOptions) *StoreHandler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = os.Stderr
	}
	collection := opts.Collection
	if collection == "" {
		collection = "logs"
	}
	return &StoreHandler{
		inner:      inner,
		store:      store,
		collection: collection,
		level:      level,
		service:    opts.Service,
		fallback:   fallback,
	}
}

// Enabled reports whether a record at the given level would be handled by
// either the store or the wrapped handler.
func (h *StoreHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() || h.inner.Enabled(ctx, level)
}

// Handle maps the record to a Document and writes it synchronously, then
// delegates to the wrapped handler. A storage failure produces one line on
// the fallback writer and nothing else; logging it through slog again would
// recurse into this handler.
func (h *StoreHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		doc := h.document(ctx, r)
		if err := h.store.Insert(ctx, h.collection, doc); err != nil {
			fmt.Fprintf(h.fallback, "telemetry: log record not persisted: %v\n", err)
		}
	}

	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

// WithAttrs returns a handler that includes the given attributes on every
// record, both in storage and on the wrapped handler.
func (h *StoreHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	clone.attrs = append(clone.attrs[:len(clone.attrs):len(clone.attrs)], qualify(h.groups, attrs)...)
	return &clone
}

// WithGroup opens a group; subsequent attribute keys are qualified with the
// group name, dot-separated, in the persisted document.
func (h *StoreHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	clone.groups = append(clone.groups[:len(clone.groups):len(clone.groups)], name)
	return &clone
}

func (h *StoreHandler) document(ctx context.Context, r slog.Record) Document {
	doc := Document{
		Timestamp: r.Time.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,
		RequestID: requestid.FromContext(ctx),
		Service:   h.service,
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		doc.TraceID = sc.TraceID().String()
		if sc.HasSpanID() {
			doc.SpanID = sc.SpanID().String()
		}
	}

	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		if frame, _ := frames.Next(); frame.File != "" {
			doc.Source = &SourceLocation{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			}
		}
	}

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	prefix := groupPrefix(h.groups)
	r.Attrs(func(a slog.Attr) bool {
		attrs[prefix+a.Key] = attrValue(a.Value)
		return true
	})

	if name, ok := attrs[LoggerKey].(string); ok {
		doc.Logger = name
		delete(attrs, LoggerKey)
	}
	if len(attrs) > 0 {
		doc.Attributes = attrs
	}
	return doc
}

// attrValue converts a slog value to a document-friendly form. Errors become
// their message, groups become nested maps, times stay native so the driver
// stores them as BSON datetimes.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		members := v.Group()
		m := make(map[string]any, len(members))
		for _, a := range members {
			m[a.Key] = attrValue(a.Value)
		}
		return m
	case slog.KindTime:
		return v.Time().UTC()
	case slog.KindDuration:
		return v.Duration().String()
	default:
		raw := v.Any()
		if err, ok := raw.(error); ok {
			return err.Error()
		}
		return raw
	}
}

func qualify(groups []string, attrs []slog.Attr) []slog.Attr {
	prefix := groupPrefix(groups)
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

func groupPrefix(groups []string) string {
	prefix := ""
	for _, g := range groups {
		prefix += g + "."
	}
	return prefix
}
