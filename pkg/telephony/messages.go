// Package telephony speaks the media-stream wire protocol of the
// telephony provider: the JSON envelopes carried over the bidirectional
// media WebSocket and the REST call used to place outbound calls.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Media stream event types.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventClear     = "clear"
)

// Envelope is one media-stream message in either direction. Only the
// payload matching Event is populated.
type Envelope struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSid      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
}

// StartPayload opens a stream. CustomParameters carries the
// organization, agent, and voice selection injected at call setup.
type StartPayload struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFormat describes the companded audio on the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one chunk of base64 companded audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopPayload closes a stream.
type StopPayload struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

// MarkPayload is a playback checkpoint echoed back by the provider once
// all audio queued before it has been played to the caller.
type MarkPayload struct {
	Name string `json:"name"`
}

// ParseEnvelope decodes one inbound media-stream message.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("parse media envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("media envelope missing event type")
	}
	return env, nil
}

// Audio decodes the base64 companded payload.
func (m *MediaPayload) Audio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return data, nil
}

// MediaEnvelope wraps one outbound companded frame for the stream.
func MediaEnvelope(streamSid string, frame []byte) Envelope {
	return Envelope{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media: &MediaPayload{
			Payload: base64.StdEncoding.EncodeToString(frame),
		},
	}
}

// MarkEnvelope requests a playback checkpoint named name.
func MarkEnvelope(streamSid, name string) Envelope {
	return Envelope{
		Event:     EventMark,
		StreamSid: streamSid,
		Mark:      &MarkPayload{Name: name},
	}
}

// ClearEnvelope discards all audio the provider has buffered but not yet
// played. Sent on barge-in.
func ClearEnvelope(streamSid string) Envelope {
	return Envelope{
		Event:     EventClear,
		StreamSid: streamSid,
	}
}
