package realtime

import (
	"encoding/json"
	"strings"

	"github.com/velora-ai/velora/pkg/scheduling"
)

// ToolInvocation accumulates one streamed function call until its
// completion signal arrives. Keyed by the model's call id; discarded
// after dispatch or when the session closes.
type ToolInvocation struct {
	CallID string
	ItemID string
	Name   string
	args   strings.Builder
}

// AppendArguments buffers one streamed argument fragment.
func (t *ToolInvocation) AppendArguments(fragment string) {
	t.args.WriteString(fragment)
}

// Arguments returns the accumulated argument JSON.
func (t *ToolInvocation) Arguments() json.RawMessage {
	return json.RawMessage(t.args.String())
}

// InferToolName guesses the intended tool from the argument shape when
// the model omitted the function name. start+end alone means an
// availability check; adding customer details means a booking; a bare
// date means a slot listing. start+end win over a stray date field.
func InferToolName(args json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return ""
	}

	_, hasStart := fields["start"]
	_, hasEnd := fields["end"]
	_, hasCustomer := fields["customer"]
	_, hasDate := fields["date"]

	switch {
	case hasStart && hasEnd && hasCustomer:
		return scheduling.ToolBookAppointment
	case hasStart && hasEnd:
		return scheduling.ToolCheckAvailability
	case hasDate:
		return scheduling.ToolGetAvailableSlots
	default:
		return ""
	}
}
