package delivery

import (
	"encoding/json"
	"fmt"

	"github.com/aerolink-systems/aerolink-agent/internal/models"
)

// buildPayload assembles the wire payload. encoding/json emits map
// keys sorted and compact, so the same batch always serializes to the
// same bytes and the signature stays stable.
func buildPayload(clientID int, create, update []*models.Event) ([]byte, error) {
	payload := map[string]any{
		"client_id": clientID,
		"create":    eventList(create),
		"update":    eventList(update),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// eventList renders events in the wire shape. Altitude and fuel are
// null for identity events.
func eventList(events []*models.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"id":             e.ID,
			"event_time":     e.EventTime,
			"kind":           string(e.Kind),
			"identity_label": e.IdentityLabel,
			"altitude":       e.Altitude,
			"fuel_percent":   e.FuelPercent,
			"confidence":     e.Confidence,
		})
	}
	return out
}
