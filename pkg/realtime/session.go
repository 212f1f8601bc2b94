package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// State is the session lifecycle position.
type State int

const (
	StateConnecting State = iota
	StateGreetingWaitConsent
	StateConversing
	StateToolPending
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateGreetingWaitConsent:
		return "greeting_wait_consent"
	case StateConversing:
		return "conversing"
	case StateToolPending:
		return "tool_pending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultConsentTimeout forces the consent transition if transcription
// never yields an affirmative. Keeps the call moving when transcription
// fails.
const DefaultConsentTimeout = 12 * time.Second

// Sender writes events to the model connection.
type Sender interface {
	SendEvent(v any) error
}

// Dispatcher executes one tool invocation and always returns JSON the
// model can verbalize.
type Dispatcher interface {
	Dispatch(ctx context.Context, orgID, name string, args json.RawMessage) json.RawMessage
}

// SessionConfig is the per-call conversational setup.
type SessionConfig struct {
	StreamSid    string
	OrgID        string
	Greeting     string
	Instructions string
	Voice        string
	Language     string

	// InputFormat and OutputFormat are the model-side audio formats.
	// Input defaults to g711_ulaw so caller audio forwards unmodified;
	// output defaults to pcm16 at the model's native rate.
	InputFormat  string
	OutputFormat string

	ConsentTimeout time.Duration
	Tools          []ToolDefinition
}

// TranscriptLine is one utterance in the call transcript.
type TranscriptLine struct {
	Role string
	Text string
}

// Callbacks are the session's hooks into the telephony side. Any field
// may be nil. OnAudio receives decoded model audio. OnBargeIn fires
// after an in-flight response is cancelled so caller-side buffers can be
// flushed. OnResponseDone fires when a response finishes normally.
type Callbacks struct {
	OnAudio        func(audio []byte)
	OnBargeIn      func()
	OnResponseDone func(responseID string)
}

// Session drives the model side of one call. All inbound events funnel
// through HandleEvent, which holds a single mutex per event so consent
// gating and barge-in have exactly one mutation point. Tool dispatch is
// the only long-blocking operation and runs on its own goroutine so
// audio pacing never stalls behind it.
type Session struct {
	cfg   SessionConfig
	send  Sender
	tools Dispatcher
	cb    Callbacks

	ctx    context.Context
	cancel context.CancelFunc

	mu                 sync.Mutex
	state              State
	consentTimer       *time.Timer
	greetingResponseID string
	activeResponseID   string
	responseHasAudio   bool
	pendingAppends     int
	lastCommit         time.Time
	transcript         []TranscriptLine
	invocations        map[string]*ToolInvocation
}

// NewSession creates a session in the connecting state.
func NewSession(cfg SessionConfig, send Sender, tools Dispatcher, cb Callbacks) *Session {
	if cfg.InputFormat == "" {
		cfg.InputFormat = "g711_ulaw"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "pcm16"
	}
	if cfg.ConsentTimeout <= 0 {
		cfg.ConsentTimeout = DefaultConsentTimeout
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:         cfg,
		send:        send,
		tools:       tools,
		cb:          cb,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateConnecting,
		invocations: make(map[string]*ToolInvocation),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the accumulated transcript.
func (s *Session) Transcript() []TranscriptLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptLine, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// AppendCallerAudio forwards one base64 chunk of caller audio upstream.
func (s *Session) AppendCallerAudio(audioBase64 string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.pendingAppends++
	s.mu.Unlock()

	return s.send.SendEvent(appendAudioEvent(audioBase64))
}

// HandleEvent processes one upstream message. Malformed messages are
// logged and skipped; the stream continues.
func (s *Session) HandleEvent(raw []byte) {
	ev, err := ParseServerEvent(raw)
	if err != nil {
		slog.Warn("skipping malformed model event",
			slog.String("stream_sid", s.cfg.StreamSid),
			slog.String("error", err.Error()),
		)
		return
	}

	switch ev.Type {
	case EventSessionCreated:
		s.handleSessionCreated()
	case EventSessionUpdated:
		s.handleSessionUpdated()
	case EventInputCommitted:
		s.handleInputCommitted()
	case EventTranscriptionCompleted:
		s.handleTranscription(ev.Transcript)
	case EventResponseCreated:
		s.handleResponseCreated(ev)
	case EventResponseDone:
		s.handleResponseDone(ev)
	case EventAudioDelta:
		s.handleAudioDelta(ev)
	case EventAudioTranscriptDone:
		s.handleAgentTranscript(ev.Transcript)
	case EventOutputItemAdded:
		s.handleOutputItemAdded(ev)
	case EventFunctionArgsDelta:
		s.handleFunctionArgsDelta(ev)
	case EventFunctionArgsDone:
		s.handleFunctionArgsDone(ev)
	case EventError:
		if ev.Error != nil {
			slog.Warn("model reported error",
				slog.String("stream_sid", s.cfg.StreamSid),
				slog.String("code", ev.Error.Code),
				slog.String("message", ev.Error.Message),
			)
		}
	}
}

func (s *Session) handleSessionCreated() {
	s.send.SendEvent(sessionUpdateEvent(s.cfg))
}

func (s *Session) handleSessionUpdated() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateGreetingWaitConsent
	s.consentTimer = time.AfterFunc(s.cfg.ConsentTimeout, s.consentTimeout)
	s.mu.Unlock()

	slog.Info("session configured, issuing greeting",
		slog.String("stream_sid", s.cfg.StreamSid),
		slog.String("voice", s.cfg.Voice),
	)
	s.send.SendEvent(greetingResponseEvent(s.cfg.Greeting))
}

func (s *Session) consentTimeout() {
	s.mu.Lock()
	moved := s.transitionToConversingLocked("timeout")
	s.mu.Unlock()
	if moved {
		slog.Warn("consent timeout elapsed, proceeding",
			slog.String("stream_sid", s.cfg.StreamSid),
		)
	}
}

// transitionToConversingLocked moves out of greeting_wait_consent
// exactly once. Safe against the timer and a transcript racing.
func (s *Session) transitionToConversingLocked(reason string) bool {
	if s.state != StateGreetingWaitConsent {
		return false
	}
	if s.consentTimer != nil {
		s.consentTimer.Stop()
		s.consentTimer = nil
	}
	s.state = StateConversing
	slog.Info("entering conversation",
		slog.String("stream_sid", s.cfg.StreamSid),
		slog.String("reason", reason),
	)
	return true
}

func (s *Session) handleInputCommitted() {
	s.mu.Lock()
	s.pendingAppends = 0
	s.lastCommit = time.Now()
	s.mu.Unlock()
}

func (s *Session) handleTranscription(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, TranscriptLine{Role: "caller", Text: text})

	bargedIn := false
	switch s.state {
	case StateGreetingWaitConsent:
		if IsAffirmative(text) {
			s.transitionToConversingLocked("consent")
		}
	case StateConversing, StateToolPending:
		bargedIn = s.cancelActiveLocked()
	}
	s.mu.Unlock()

	if bargedIn && s.cb.OnBargeIn != nil {
		s.cb.OnBargeIn()
	}
}

// cancelActiveLocked cancels the in-flight response if it has produced
// audio. Idempotent: with nothing active it does nothing, and a second
// call can never cancel a later unrelated response.
func (s *Session) cancelActiveLocked() bool {
	if s.activeResponseID == "" || !s.responseHasAudio {
		return false
	}
	slog.Debug("cancelling in-flight response",
		slog.String("stream_sid", s.cfg.StreamSid),
		slog.String("response_id", s.activeResponseID),
	)
	s.activeResponseID = ""
	s.responseHasAudio = false
	s.send.SendEvent(cancelResponseEvent())
	return true
}

// CancelActiveResponse is the public barge-in entry point. No-op when
// nothing is in flight.
func (s *Session) CancelActiveResponse() {
	s.mu.Lock()
	bargedIn := s.cancelActiveLocked()
	s.mu.Unlock()

	if bargedIn && s.cb.OnBargeIn != nil {
		s.cb.OnBargeIn()
	}
}

func (s *Session) handleResponseCreated(ev ServerEvent) {
	if ev.Response == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateGreetingWaitConsent {
		if s.greetingResponseID == "" {
			s.greetingResponseID = ev.Response.ID
		} else if ev.Response.ID != s.greetingResponseID {
			// Model-initiated turns stay suppressed until consent.
			s.send.SendEvent(cancelResponseEvent())
			return
		}
	}
	s.activeResponseID = ev.Response.ID
	s.responseHasAudio = false
}

func (s *Session) handleResponseDone(ev ServerEvent) {
	if ev.Response == nil {
		return
	}

	s.mu.Lock()
	completed := ev.Response.ID == s.activeResponseID
	if completed {
		s.activeResponseID = ""
		s.responseHasAudio = false
	}
	s.mu.Unlock()

	if completed && s.cb.OnResponseDone != nil {
		s.cb.OnResponseDone(ev.Response.ID)
	}
}

func (s *Session) handleAudioDelta(ev ServerEvent) {
	audio, err := base64.StdEncoding.DecodeString(ev.Delta)
	if err != nil {
		slog.Warn("skipping undecodable audio delta",
			slog.String("stream_sid", s.cfg.StreamSid),
		)
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.responseHasAudio = true
	s.mu.Unlock()

	if s.cb.OnAudio != nil {
		s.cb.OnAudio(audio)
	}
}

func (s *Session) handleAgentTranscript(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, TranscriptLine{Role: "agent", Text: text})
	s.mu.Unlock()
}

func (s *Session) handleOutputItemAdded(ev ServerEvent) {
	if ev.Item == nil || ev.Item.Type != "function_call" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}

	s.invocations[ev.Item.CallID] = &ToolInvocation{
		CallID: ev.Item.CallID,
		ItemID: ev.Item.ID,
		Name:   ev.Item.Name,
	}
	if s.state == StateConversing {
		s.state = StateToolPending
	}
}

func (s *Session) handleFunctionArgsDelta(ev ServerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}

	inv, ok := s.invocations[ev.CallID]
	if !ok {
		inv = &ToolInvocation{CallID: ev.CallID, ItemID: ev.ItemID}
		s.invocations[ev.CallID] = inv
	}
	inv.AppendArguments(ev.Delta)
	if s.state == StateConversing {
		s.state = StateToolPending
	}
}

func (s *Session) handleFunctionArgsDone(ev ServerEvent) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}

	inv, ok := s.invocations[ev.CallID]
	if !ok {
		inv = &ToolInvocation{CallID: ev.CallID, ItemID: ev.ItemID}
	}
	delete(s.invocations, ev.CallID)

	args := inv.Arguments()
	if ev.Arguments != "" {
		args = json.RawMessage(ev.Arguments)
	}
	name := inv.Name
	if name == "" {
		name = ev.Name
	}
	if name == "" {
		name = InferToolName(args)
		if name != "" {
			slog.Info("inferred tool name from argument shape",
				slog.String("stream_sid", s.cfg.StreamSid),
				slog.String("tool", name),
			)
		}
	}
	s.mu.Unlock()

	go s.dispatchTool(ev.CallID, name, args)
}

// dispatchTool runs the single outbound HTTP call for one invocation.
// It never fails the call: the dispatcher converts every failure into a
// payload the model can speak.
func (s *Session) dispatchTool(callID, name string, args json.RawMessage) {
	slog.Info("dispatching tool call",
		slog.String("stream_sid", s.cfg.StreamSid),
		slog.String("tool", name),
		slog.String("call_id", callID),
	)
	result := s.tools.Dispatch(s.ctx, s.cfg.OrgID, name, args)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if s.state == StateToolPending {
		s.state = StateConversing
	}
	s.mu.Unlock()

	s.send.SendEvent(functionOutputEvent(callID, result))
	s.send.SendEvent(continueResponseEvent())
}

// Close ends the session: the state machine stops, pending timers and
// invocations are dropped, and in-flight tool dispatches are cancelled.
// The transport is owned by the caller and closed separately.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.consentTimer != nil {
		s.consentTimer.Stop()
		s.consentTimer = nil
	}
	s.invocations = make(map[string]*ToolInvocation)
	s.mu.Unlock()

	s.cancel()
}
