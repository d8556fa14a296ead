// Package parser maps raw decoder lines to typed beacon events. It is
// pure: no I/O, no clock access beyond the timestamp handed in by the
// caller.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aerolink-systems/aerolink-agent/internal/models"
)

// ErrUnrecognized marks lines that carry no K1/K2 tag. The stream is
// full of them; callers discard silently.
var ErrUnrecognized = errors.New("unrecognized line")

// Decoder line grammar. K1 carries a beacon timestamp and a trailing
// digit-run label after the final colon; K2 carries the same timestamp
// plus an altitude tagged "FL <n>m" and a fuel percentage tagged
// "F:<n>%".
//
//	K1 11:11:38.370.366 [ 8832] {018} **** :10437
//	K2 11:12:54.082.632 [ 8706] {017} **** FL 5360m [F176]+  F:40%
var (
	identityLine    = regexp.MustCompile(`^K1\s+(\d{2}):(\d{2}):(\d{2})\.(\d+)\.(\d+)\s+.*?:(\d+)$`)
	measurementLine = regexp.MustCompile(`^K2\s+(\d{2}):(\d{2}):(\d{2})\.(\d+)\.(\d+)\s+.*?FL\s*(\d+)m.*?F:(\d+)%`)
)

// ParseLine converts one complete decoder line into an event. now is
// the offset-corrected clock reading at receipt; the event time is
// now's date combined with the line's own HH:MM:SS. Untagged lines
// return ErrUnrecognized; tagged lines that fail the grammar or carry
// out-of-range fields return a descriptive error.
func ParseLine(line string, now time.Time) (*models.Event, error) {
	line = strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(line, "K1 "):
		return parseIdentity(line, now)
	case strings.HasPrefix(line, "K2 "):
		return parseMeasurement(line, now)
	default:
		return nil, ErrUnrecognized
	}
}

func parseIdentity(line string, now time.Time) (*models.Event, error) {
	m := identityLine.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("identity line does not match grammar: %q", line)
	}

	eventTime, err := beaconTime(now, m[1], m[2], m[3])
	if err != nil {
		return nil, fmt.Errorf("identity line: %w", err)
	}

	return &models.Event{
		ID:            uuid.New().String(),
		EventTime:     models.FormatEventTime(eventTime),
		Kind:          models.KindIdentity,
		IdentityLabel: m[6],
		Confidence:    models.InitialIdentityConfidence,
		Status:        models.StatusSynced,
	}, nil
}

func parseMeasurement(line string, now time.Time) (*models.Event, error) {
	m := measurementLine.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("measurement line does not match grammar: %q", line)
	}

	eventTime, err := beaconTime(now, m[1], m[2], m[3])
	if err != nil {
		return nil, fmt.Errorf("measurement line: %w", err)
	}

	altitude, err := strconv.Atoi(m[6])
	if err != nil {
		return nil, fmt.Errorf("measurement line: altitude %q: %w", m[6], err)
	}
	fuel, err := strconv.Atoi(m[7])
	if err != nil {
		return nil, fmt.Errorf("measurement line: fuel %q: %w", m[7], err)
	}

	return &models.Event{
		ID:          uuid.New().String(),
		EventTime:   models.FormatEventTime(eventTime),
		Kind:        models.KindMeasurement,
		Altitude:    &altitude,
		FuelPercent: &fuel,
		Confidence:  models.InitialMeasurementConfidence,
		Status:      models.StatusPendingCreate,
	}, nil
}

// beaconTime combines now's date with the beacon's own time-of-day.
// Sub-second precision on the wire is discarded; storage is second
// precision.
func beaconTime(now time.Time, hh, mm, ss string) (time.Time, error) {
	hour, err := strconv.Atoi(hh)
	if err != nil || hour > 23 {
		return time.Time{}, fmt.Errorf("bad hour %q", hh)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute > 59 {
		return time.Time{}, fmt.Errorf("bad minute %q", mm)
	}
	second, err := strconv.Atoi(ss)
	if err != nil || second > 59 {
		return time.Time{}, fmt.Errorf("bad second %q", ss)
	}

	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, second, 0, now.Location()), nil
}
