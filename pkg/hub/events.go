package hub

import "time"

// Event names published on the feed.
const (
	EventCallStarted = "call_started"
	EventCallEnded   = "call_ended"
	EventBargeIn     = "barge_in"
	EventToolCall    = "tool_call"
)

// CallEvent is one entry on the monitoring feed. Fields are populated
// per event type; unused ones are omitted from the wire form.
type CallEvent struct {
	Event     string    `json:"event"`
	StreamSid string    `json:"stream_sid,omitempty"`
	CallSid   string    `json:"call_sid,omitempty"`
	OrgID     string    `json:"org_id,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	At        time.Time `json:"at"`
}
