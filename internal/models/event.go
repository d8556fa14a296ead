package models

import "time"

// EventTimeLayout is the storage format for beacon timestamps: local
// date plus beacon time-of-day, second precision. The format string
// orders chronologically, so stored values can be range-compared as
// text.
const EventTimeLayout = "2006-01-02 15:04:05"

// Kind distinguishes the two beacon classes emitted by the decoder.
type Kind string

const (
	// KindIdentity is a K1 beacon: carries a callsign-like label, no
	// altitude or fuel.
	KindIdentity Kind = "identity"
	// KindMeasurement is a K2 beacon: carries altitude and fuel, no
	// inherent label.
	KindMeasurement Kind = "measurement"
)

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIdentity, KindMeasurement:
		return true
	}
	return false
}

// Status is the delivery lifecycle state of an event. It replaces the
// small-integer encoding used by earlier decoder clients so that every
// write site switches over named states.
type Status string

const (
	// StatusPendingCreate marks an event the remote endpoint has never
	// seen; the next delivery batch includes it in the create list.
	StatusPendingCreate Status = "pending_create"
	// StatusSynced marks an event the remote endpoint is known to have.
	StatusSynced Status = "synced"
	// StatusPendingUpdate marks a synced event whose label or
	// confidence changed since transmission; the next delivery batch
	// includes it in the update list.
	StatusPendingUpdate Status = "pending_update"
	// StatusDiscarded is set only by operators; the pipeline never
	// writes or selects it.
	StatusDiscarded Status = "discarded"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingCreate, StatusSynced, StatusPendingUpdate, StatusDiscarded:
		return true
	}
	return false
}

// Pending reports whether s makes an event eligible for delivery.
func (s Status) Pending() bool {
	return s == StatusPendingCreate || s == StatusPendingUpdate
}

// Event is the atomic unit of telemetry flowing through the pipeline.
//
// ID is assigned once at parse time and never changes; it is the
// idempotency key the remote endpoint upserts on. EventTime is the
// beacon's own clock (offset-corrected local date + beacon
// time-of-day); CreatedAt and UpdatedAt are store-assigned and drive
// windowing and ordering.
type Event struct {
	ID            string    `json:"id"`
	EventTime     string    `json:"event_time"`
	Kind          Kind      `json:"kind"`
	IdentityLabel string    `json:"identity_label"`
	Altitude      *int      `json:"altitude"`
	FuelPercent   *int      `json:"fuel_percent"`
	Confidence    int       `json:"confidence"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Identity insert defaults: identity events need no remote create
// round trip, so they are born synced and reach the endpoint only
// through aged updates.
const (
	InitialIdentityConfidence    = 50
	InitialMeasurementConfidence = 0
)

// CorrelationUpdate is one row write-back computed by a correlation
// pass: a complete replacement of the mutable fields.
type CorrelationUpdate struct {
	ID            string
	IdentityLabel string
	Confidence    int
	Status        Status
}

// FormatEventTime renders t in the event-time storage format.
func FormatEventTime(t time.Time) string {
	return t.Format(EventTimeLayout)
}

// ParseEventTime parses a stored event-time string in the local zone.
func ParseEventTime(s string) (time.Time, error) {
	return time.ParseInLocation(EventTimeLayout, s, time.Local)
}
