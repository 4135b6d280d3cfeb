package mongostore

import "fmt"

// StorageError reports a failed write to the telemetry datastore. Sinks
// swallow it at their boundary; it must never propagate into request handling.
type StorageError struct {
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage write to %q failed: %v", e.Collection, e.Err)
}

// Unwrap exposes the underlying driver error for errors.Is/As checks.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// SerializationError reports a document that could not be encoded to BSON.
// Unlike a StorageError it signals a bug in the document shape, not a
// datastore outage, so callers may want to log it more loudly.
type SerializationError struct {
	Collection string
	Err        error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize document for %q failed: %v", e.Collection, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
