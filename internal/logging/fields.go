package logging

import "log/slog"

// Common field names for consistent logging across the agent.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEventID   = "event_id"
	FieldKind      = "kind"
	FieldLabel     = "label"
	FieldStatus    = "status"
	FieldCount     = "count"
	FieldEndpoint  = "endpoint"
	FieldAttempt   = "attempt"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Component returns a slog attribute for the pipeline component name.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// Kind returns a slog attribute for a beacon kind.
func Kind(kind string) slog.Attr {
	return slog.String(FieldKind, kind)
}

// Label returns a slog attribute for an identity label.
func Label(label string) slog.Attr {
	return slog.String(FieldLabel, label)
}

// Status returns a slog attribute for an event status.
func Status(status string) slog.Attr {
	return slog.String(FieldStatus, status)
}

// Count returns a slog attribute for an event or row count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Endpoint returns a slog attribute for a remote endpoint address.
func Endpoint(url string) slog.Attr {
	return slog.String(FieldEndpoint, url)
}

// Attempt returns a slog attribute for a consecutive attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
