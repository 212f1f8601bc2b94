package realtime

import "github.com/velora-ai/velora/pkg/scheduling"

// DefaultTools returns the scheduling function schemas advertised to
// the model.
func DefaultTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        scheduling.ToolCheckAvailability,
			Description: "Check whether a specific time window is free on the business calendar.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{
						"type":        "string",
						"description": "Window start, RFC 3339 timestamp.",
					},
					"end": map[string]any{
						"type":        "string",
						"description": "Window end, RFC 3339 timestamp.",
					},
					"calendar_id": map[string]any{
						"type":        "string",
						"description": "Optional calendar to check instead of the default.",
					},
				},
				"required": []string{"start", "end"},
			},
		},
		{
			Name:        scheduling.ToolGetAvailableSlots,
			Description: "List free appointment slots on a given day.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{
						"type":        "string",
						"description": "Day to search, YYYY-MM-DD.",
					},
					"slot_minutes": map[string]any{
						"type":        "integer",
						"description": "Desired slot length in minutes.",
					},
				},
				"required": []string{"date"},
			},
		},
		{
			Name:        scheduling.ToolBookAppointment,
			Description: "Book an appointment once the caller has confirmed a time.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{
						"type":        "string",
						"description": "Appointment start, RFC 3339 timestamp.",
					},
					"end": map[string]any{
						"type":        "string",
						"description": "Appointment end, RFC 3339 timestamp.",
					},
					"customer": map[string]any{
						"type":        "object",
						"description": "Who the appointment is for.",
						"properties": map[string]any{
							"name":  map[string]any{"type": "string"},
							"phone": map[string]any{"type": "string"},
							"email": map[string]any{"type": "string"},
						},
					},
					"notes": map[string]any{
						"type":        "string",
						"description": "Anything the business should know beforehand.",
					},
				},
				"required": []string{"start", "end", "customer"},
			},
		},
	}
}
