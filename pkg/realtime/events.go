package realtime

import (
	"encoding/json"
	"fmt"
)

// Server event types the session reacts to. Anything else is ignored.
const (
	EventSessionCreated         = "session.created"
	EventSessionUpdated         = "session.updated"
	EventSpeechStarted          = "input_audio_buffer.speech_started"
	EventSpeechStopped          = "input_audio_buffer.speech_stopped"
	EventInputCommitted         = "input_audio_buffer.committed"
	EventTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventResponseCreated        = "response.created"
	EventResponseDone           = "response.done"
	EventAudioDelta             = "response.audio.delta"
	EventAudioDone              = "response.audio.done"
	EventOutputItemAdded        = "response.output_item.added"
	EventAudioTranscriptDone    = "response.audio_transcript.done"
	EventFunctionArgsDelta      = "response.function_call_arguments.delta"
	EventFunctionArgsDone       = "response.function_call_arguments.done"
	EventError                  = "error"
)

// ServerEvent is one upstream message. Fields are a union across event
// types; only those matching Type are populated.
type ServerEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	ResponseID string `json:"response_id,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Arguments  string `json:"arguments,omitempty"`

	Response *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response,omitempty"`

	Item *struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		CallID string `json:"call_id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"item,omitempty"`

	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ParseServerEvent decodes one upstream message.
func ParseServerEvent(raw []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("parse server event: %w", err)
	}
	if ev.Type == "" {
		return ServerEvent{}, fmt.Errorf("server event missing type")
	}
	return ev, nil
}

// ToolDefinition is one function schema advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// sessionUpdateEvent builds the session.update configuration message.
func sessionUpdateEvent(cfg SessionConfig) map[string]any {
	apiTools := make([]map[string]any, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		apiTools[i] = map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		}
	}

	session := map[string]any{
		"modalities":          []string{"text", "audio"},
		"instructions":        cfg.Instructions,
		"voice":               cfg.Voice,
		"input_audio_format":  cfg.InputFormat,
		"output_audio_format": cfg.OutputFormat,
		"input_audio_transcription": map[string]any{
			"model": "whisper-1",
		},
		"turn_detection": map[string]any{
			"type":                "server_vad",
			"threshold":           0.5,
			"prefix_padding_ms":   300,
			"silence_duration_ms": 500,
		},
		"tools":       apiTools,
		"tool_choice": "auto",
	}
	if cfg.Language != "" {
		session["input_audio_transcription"] = map[string]any{
			"model":    "whisper-1",
			"language": cfg.Language,
		}
	}

	return map[string]any{
		"type":    "session.update",
		"session": session,
	}
}

func appendAudioEvent(audioBase64 string) map[string]any {
	return map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": audioBase64,
	}
}

func greetingResponseEvent(greeting string) map[string]any {
	return map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"modalities":   []string{"text", "audio"},
			"instructions": fmt.Sprintf("Greet the caller by saying exactly this, word for word, and nothing else: %q", greeting),
		},
	}
}

func cancelResponseEvent() map[string]any {
	return map[string]any{"type": "response.cancel"}
}

func continueResponseEvent() map[string]any {
	return map[string]any{"type": "response.create"}
}

func functionOutputEvent(callID string, output json.RawMessage) map[string]any {
	return map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  string(output),
		},
	}
}
