package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/aerolink-systems/aerolink-agent/internal/models"
	"github.com/aerolink-systems/aerolink-agent/internal/parser"
)

func TestIdentityLinesParse(t *testing.T) {
	gofakeit.Seed(11)
	now := time.Date(2026, 3, 14, 11, 11, 38, 370366000, time.Local)

	// Run many times so the random counters cover their ranges.
	for i := 0; i < 500; i++ {
		fleet := newFleet(1)
		line := identityLine(fleet[0], now)

		if !strings.HasSuffix(line, "\n") {
			t.Fatalf("line missing newline terminator: %q", line)
		}

		event, err := parser.ParseLine(strings.TrimSuffix(line, "\n"), now)
		if err != nil {
			t.Fatalf("generated K1 line did not parse: %q: %v", line, err)
		}
		if event.Kind != models.KindIdentity {
			t.Errorf("kind = %q, want identity", event.Kind)
		}
		if event.IdentityLabel != fleet[0].label {
			t.Errorf("label = %q, want %q", event.IdentityLabel, fleet[0].label)
		}
		if event.EventTime != "2026-03-14 11:11:38" {
			t.Errorf("event time = %q", event.EventTime)
		}
	}
}

func TestMeasurementLinesParse(t *testing.T) {
	gofakeit.Seed(22)
	now := time.Date(2026, 3, 14, 11, 12, 54, 82632000, time.Local)

	for i := 0; i < 500; i++ {
		fleet := newFleet(1)
		a := fleet[0]
		line := measurementLine(a, now)

		event, err := parser.ParseLine(strings.TrimSuffix(line, "\n"), now)
		if err != nil {
			t.Fatalf("generated K2 line did not parse: %q: %v", line, err)
		}
		if event.Kind != models.KindMeasurement {
			t.Errorf("kind = %q, want measurement", event.Kind)
		}
		if event.Altitude == nil || *event.Altitude != a.altitude {
			t.Errorf("altitude = %v, want %d", event.Altitude, a.altitude)
		}
		if event.FuelPercent == nil || *event.FuelPercent != a.fuel {
			t.Errorf("fuel = %v, want %d", event.FuelPercent, a.fuel)
		}
	}
}

func TestNoiseLinesAreUnrecognized(t *testing.T) {
	gofakeit.Seed(33)
	now := time.Now()

	for i := 0; i < 200; i++ {
		line := strings.TrimSuffix(noiseLine(), "\n")
		_, err := parser.ParseLine(line, now)
		if !errors.Is(err, parser.ErrUnrecognized) {
			t.Errorf("noise line %q should be unrecognized, got %v", line, err)
		}
	}
}

func TestFleetStateStaysInRange(t *testing.T) {
	gofakeit.Seed(44)
	fleet := newFleet(5)

	for i := 0; i < 5000; i++ {
		for _, a := range fleet {
			a.step()
			if a.altitude < 500 || a.altitude > 12000 {
				t.Fatalf("altitude %d escaped [500, 12000]", a.altitude)
			}
			if a.fuel < 5 || a.fuel > 100 {
				t.Fatalf("fuel %d escaped [5, 100]", a.fuel)
			}
		}
	}
}

func TestFleetLabelsAreFiveDigits(t *testing.T) {
	gofakeit.Seed(55)
	fleet := newFleet(20)

	for _, a := range fleet {
		if len(a.label) != 5 {
			t.Errorf("label %q is not five digits", a.label)
		}
		for _, c := range a.label {
			if c < '0' || c > '9' {
				t.Errorf("label %q contains non-digit %q", a.label, c)
			}
		}
	}
}

func TestBeaconClockFormat(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 5, 7, 12034000, time.Local)
	if got := beaconClock(at); got != "09:05:07.012.034" {
		t.Errorf("beaconClock = %q, want 09:05:07.012.034", got)
	}
}
