// Package tracing provides the tracer, the HTTP tracing middleware, and the
// span exporter that persists finished spans as documents.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this service's spans.
const instrumentationName = "devto-news"

// GetTracer returns the service tracer from the installed provider. The
// lookup is per call so spans always flow to the current provider.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
