package models

import (
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPendingCreate, true},
		{StatusSynced, true},
		{StatusPendingUpdate, true},
		{StatusDiscarded, true},
		{Status(""), false},
		{Status("sent"), false},
		{Status("1"), false},
	}

	for _, tt := range tests {
		if got := tt.status.Valid(); got != tt.want {
			t.Errorf("Status(%q).Valid() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusPending(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPendingCreate, true},
		{StatusPendingUpdate, true},
		{StatusSynced, false},
		{StatusDiscarded, false},
	}

	for _, tt := range tests {
		if got := tt.status.Pending(); got != tt.want {
			t.Errorf("Status(%q).Pending() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestKindValid(t *testing.T) {
	if !KindIdentity.Valid() || !KindMeasurement.Valid() {
		t.Error("expected defined kinds to be valid")
	}
	if Kind("K1").Valid() {
		t.Error("expected raw tag to be invalid as a kind")
	}
}

func TestEventTimeRoundTrip(t *testing.T) {
	orig := time.Date(2026, 3, 14, 11, 11, 38, 0, time.Local)

	s := FormatEventTime(orig)
	if s != "2026-03-14 11:11:38" {
		t.Fatalf("FormatEventTime = %q", s)
	}

	parsed, err := ParseEventTime(s)
	if err != nil {
		t.Fatalf("ParseEventTime: %v", err)
	}
	if !parsed.Equal(orig) {
		t.Errorf("round trip mismatch: %v != %v", parsed, orig)
	}
}

func TestEventTimeOrdersAsText(t *testing.T) {
	// Range queries compare stored event times as text; the layout must
	// sort chronologically.
	earlier := FormatEventTime(time.Date(2026, 3, 14, 9, 59, 59, 0, time.Local))
	later := FormatEventTime(time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local))

	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}
}

func TestParseEventTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "11:11:38", "2026-03-14T11:11:38Z", "not a time"} {
		if _, err := ParseEventTime(s); err == nil {
			t.Errorf("ParseEventTime(%q): expected error", s)
		}
	}
}
