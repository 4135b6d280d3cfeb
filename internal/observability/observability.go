// Package observability provides the telemetry persistence bridge: custom
// log, trace and metric sinks that adapt the OpenTelemetry SDK's push model
// to a MongoDB-backed document store.
//
// Subpackages:
//   - logging: console logger plus the slog.Handler that persists log records
//   - tracing: tracer, HTTP middleware, and the span exporter
//   - metrics: application counters, the metric exporter, and the flush loop
//   - telemetry: provider wiring and shutdown composition
//
// All sinks share one hard rule: a telemetry write failure is isolated and
// non-fatal. Failures surface as a fallback notice on stderr and a gap in the
// stored telemetry, never as an error in request handling.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Inserter is the storage contract the sinks write through. It is implemented
// by mongostore.Store; tests substitute in-memory fakes.
type Inserter interface {
	Insert(ctx context.Context, collection string, doc any) error
}

// ServiceInfo is the static service identity attached to every persisted
// document. It is built once at process start and treated as read-only for
// the process lifetime.
type ServiceInfo struct {
	Name        string `bson:"name" json:"name"`
	Version     string `bson:"version" json:"version"`
	InstanceID  string `bson:"instance_id" json:"instance_id"`
	Environment string `bson:"environment" json:"environment"`
}

// Resource expresses the service identity as an OpenTelemetry resource for
// the tracer and meter providers.
func (s ServiceInfo) Resource() *resource.Resource {
	return resource.NewWithAttributes(
		"",
		attribute.String("service.name", s.Name),
		attribute.String("service.version", s.Version),
		attribute.String("service.instance.id", s.InstanceID),
		attribute.String("deployment.environment", s.Environment),
	)
}
