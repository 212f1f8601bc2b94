// Package bridge wires one telephony media stream to one model session:
// it resolves the agent, dials the model, and pumps audio both ways
// until the call ends. Each call owns its session, pacing queue, and
// resampler; nothing is shared across calls except read-only
// configuration and the metrics bundle.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/velora-ai/velora/internal/log"
	"github.com/velora-ai/velora/internal/metrics"
	"github.com/velora-ai/velora/pkg/agents"
	"github.com/velora-ai/velora/pkg/audio"
	"github.com/velora-ai/velora/pkg/hub"
	"github.com/velora-ai/velora/pkg/pacing"
	"github.com/velora-ai/velora/pkg/realtime"
	"github.com/velora-ai/velora/pkg/telephony"
)

// telephonyRate is the companded sample rate on the media stream.
const telephonyRate = 8000

// setupTimeout bounds agent resolution plus the model dial.
const setupTimeout = 10 * time.Second

// apologyGreeting is spoken when the call cannot proceed, so the caller
// never gets dead air before the hangup.
const apologyGreeting = "Sorry, we are unable to take your call right now. Please try again later."

// apologyDeadline caps how long an apology-only call may hold the line.
const apologyDeadline = 15 * time.Second

// MediaConn is the bidirectional telephony stream. Satisfied by both
// gofiber and gorilla websocket connections.
type MediaConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// ModelConn is the upstream model transport the bridge pumps events
// from.
type ModelConn interface {
	realtime.Sender
	ReadEvent() ([]byte, error)
	Close() error
}

// ModelDialer opens the upstream connection for one call.
type ModelDialer func(ctx context.Context) (ModelConn, error)

// Config holds the per-process bridge settings.
type Config struct {
	Model  realtime.ClientConfig
	Pacing pacing.Config

	// OutputFormat is the model's audio output: "pcm16" resamples and
	// compands through the pacing queue; "g711_ulaw" passes frames
	// through untouched, trusting the model's own pacing.
	OutputFormat    string
	ModelSampleRate int

	ConsentTimeout time.Duration
}

// Bridge accepts media connections and runs calls. Safe for concurrent
// use; each call runs on its caller's goroutine.
type Bridge struct {
	cfg     Config
	agents  agents.Resolver
	tools   realtime.Dispatcher
	metrics *metrics.Metrics
	events  *hub.Hub
	dial    ModelDialer

	active atomic.Int64
}

// New creates a bridge. The model dialer defaults to the real upstream
// connection. events may be nil when no monitoring feed is attached.
func New(cfg Config, resolver agents.Resolver, tools realtime.Dispatcher, m *metrics.Metrics, events *hub.Hub) *Bridge {
	if cfg.Pacing.TickInterval == 0 {
		cfg.Pacing = pacing.DefaultConfig()
	}
	if cfg.ModelSampleRate == 0 {
		cfg.ModelSampleRate = 24000
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "pcm16"
	}

	b := &Bridge{
		cfg:     cfg,
		agents:  resolver,
		tools:   measuredDispatcher{inner: tools, metrics: m, events: events},
		metrics: m,
		events:  events,
	}
	b.dial = func(ctx context.Context) (ModelConn, error) {
		return realtime.Dial(ctx, cfg.Model)
	}
	return b
}

// ActiveCalls reports how many calls are currently bridged.
func (b *Bridge) ActiveCalls() int64 {
	return b.active.Load()
}

func (b *Bridge) publish(ev hub.CallEvent) {
	if b.events == nil {
		return
	}
	ev.At = time.Now()
	b.events.Publish(ev)
}

// HandleCall services one media connection until stop or closure. It
// blocks for the lifetime of the call; the caller owns conn and closes
// it afterward.
func (b *Bridge) HandleCall(conn MediaConn) {
	start, ok := awaitStart(conn)
	if !ok {
		return
	}

	streamSid := start.StreamSid
	logger := log.ForCall(streamSid, start.CallSid)
	params := start.CustomParameters
	orgID := params["org_id"]

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	agentCfg, err := b.agents.Resolve(ctx, orgID, params["agent_id"])
	apologyOnly := false
	if err != nil {
		// Fatal for the call, but the caller still hears a short
		// apology instead of dead air before the hangup.
		logger.Error("agent resolution failed, will apologize and hang up", "error", err)
		apologyOnly = true
		agentCfg = agents.Config{Greeting: apologyGreeting}
	}

	modelConn, err := b.dial(ctx)
	cancel()
	if err != nil {
		logger.Error("model dial failed, rejecting call", "error", err)
		return
	}
	defer modelConn.Close()

	voice := params["voice"]
	if voice == "" {
		voice = agentCfg.Voice
	}

	b.metrics.RecordCallStart()
	b.active.Add(1)
	startedAt := time.Now()
	logger.Info("call bridged",
		"org_id", orgID,
		"voice", voice,
		"output_format", b.cfg.OutputFormat,
	)
	b.publish(hub.CallEvent{
		Event:     hub.EventCallStarted,
		StreamSid: streamSid,
		CallSid:   start.CallSid,
		OrgID:     orgID,
	})

	var writeMu sync.Mutex
	sendEnvelope := func(env telephony.Envelope) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(env); err != nil {
			logger.Debug("telephony write failed", "error", err)
		}
	}

	passthrough := b.cfg.OutputFormat == "g711_ulaw"
	var queue *pacing.Queue
	var resampler *audio.Resampler
	if !passthrough {
		queue, err = pacing.NewQueue(b.cfg.Pacing, func(frame []byte) {
			sendEnvelope(telephony.MediaEnvelope(streamSid, frame))
		})
		if err != nil {
			logger.Error("pacing setup failed", "error", err)
			b.endCall(startedAt, 0, 0)
			b.publish(hub.CallEvent{Event: hub.EventCallEnded, StreamSid: streamSid, OrgID: orgID})
			return
		}
		resampler = audio.NewResampler(b.cfg.ModelSampleRate, telephonyRate)
	}

	// Model audio arrives on the model read goroutine only, so the
	// resampler's carry-over state needs no further locking.
	onAudio := func(chunk []byte) {
		if passthrough {
			sendEnvelope(telephony.MediaEnvelope(streamSid, chunk))
			return
		}
		samples := audio.BytesToSamples(chunk)
		queue.Push(audio.Encode(resampler.Process(samples)))
	}

	onBargeIn := func() {
		if queue != nil {
			queue.Clear()
		}
		sendEnvelope(telephony.ClearEnvelope(streamSid))
		b.metrics.RecordBargeIn()
		b.publish(hub.CallEvent{Event: hub.EventBargeIn, StreamSid: streamSid, OrgID: orgID})
	}

	onResponseDone := func(responseID string) {
		if apologyOnly && queue != nil {
			queue.Flush()
		}
		sendEnvelope(telephony.MarkEnvelope(streamSid, "response-"+responseID))
		if apologyOnly {
			conn.Close()
		}
	}

	toolDefs := realtime.DefaultTools()
	if apologyOnly {
		toolDefs = nil
	}

	session := realtime.NewSession(realtime.SessionConfig{
		StreamSid:      streamSid,
		OrgID:          orgID,
		Greeting:       agentCfg.Greeting,
		Instructions:   agentCfg.SystemPrompt,
		Voice:          voice,
		Language:       agentCfg.Language,
		OutputFormat:   b.cfg.OutputFormat,
		ConsentTimeout: b.cfg.ConsentTimeout,
		Tools:          toolDefs,
	}, modelConn, b.tools, realtime.Callbacks{
		OnAudio:        onAudio,
		OnBargeIn:      onBargeIn,
		OnResponseDone: onResponseDone,
	})
	defer session.Close()

	if queue != nil {
		queue.Start()
		defer queue.Stop()
	}

	if apologyOnly {
		// The apology ends with the first completed response; this is
		// the backstop if the model never produces one.
		hangup := time.AfterFunc(apologyDeadline, func() { conn.Close() })
		defer hangup.Stop()
	}

	// Pump model events. A dropped model connection ends the call
	// rather than leaving a dead line, so the telephony read below is
	// unblocked by closing its conn.
	modelDone := make(chan struct{})
	go func() {
		defer close(modelDone)
		for {
			raw, err := modelConn.ReadEvent()
			if err != nil {
				logger.Info("model connection ended", "error", err)
				return
			}
			session.HandleEvent(raw)
		}
	}()
	go func() {
		<-modelDone
		conn.Close()
	}()

readLoop:
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Info("media stream closed", "error", err)
			break
		}

		env, err := telephony.ParseEnvelope(raw)
		if err != nil {
			logger.Warn("skipping malformed media message", "error", err)
			continue
		}

		switch env.Event {
		case telephony.EventMedia:
			if env.Media != nil {
				session.AppendCallerAudio(env.Media.Payload)
			}
		case telephony.EventStop:
			logger.Info("stream stopped by provider")
			break readLoop
		case telephony.EventMark:
			if env.Mark != nil {
				logger.Debug("mark acknowledged", "name", env.Mark.Name)
			}
		}
	}

	var sent, silence uint64
	if queue != nil {
		queue.Flush()
		sent, silence = queue.Stats()
	}
	b.endCall(startedAt, sent, silence)

	lines := session.Transcript()
	logger.Info("call ended",
		"state", session.State().String(),
		"duration", time.Since(startedAt).Round(time.Second).String(),
		"transcript_lines", len(lines),
		"frames_sent", sent,
		"silence_frames", silence,
	)
	b.publish(hub.CallEvent{
		Event:     hub.EventCallEnded,
		StreamSid: streamSid,
		CallSid:   start.CallSid,
		OrgID:     orgID,
		Duration:  time.Since(startedAt).Round(time.Second).String(),
	})
}

func (b *Bridge) endCall(startedAt time.Time, sent, silence uint64) {
	b.active.Add(-1)
	b.metrics.RecordCallEnd(time.Since(startedAt), sent, silence)
}

// awaitStart reads until the start-of-stream message arrives. Connected
// preambles are skipped; a closed socket before start aborts the call.
func awaitStart(conn MediaConn) (*telephony.StartPayload, bool) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, false
		}
		env, err := telephony.ParseEnvelope(raw)
		if err != nil {
			log.Warn("skipping malformed pre-start message", "error", err)
			continue
		}
		switch env.Event {
		case telephony.EventConnected:
			log.Debug("media stream connected")
		case telephony.EventStart:
			if env.Start == nil || env.Start.StreamSid == "" {
				log.Warn("start message missing stream sid, rejecting")
				return nil, false
			}
			return env.Start, true
		case telephony.EventStop:
			return nil, false
		}
	}
}

// measuredDispatcher wraps tool dispatch with latency and outcome
// metrics, and mirrors each dispatch onto the event feed.
type measuredDispatcher struct {
	inner   realtime.Dispatcher
	metrics *metrics.Metrics
	events  *hub.Hub
}

func (d measuredDispatcher) Dispatch(ctx context.Context, orgID, name string, args json.RawMessage) json.RawMessage {
	start := time.Now()
	result := d.inner.Dispatch(ctx, orgID, name, args)

	outcome := "ok"
	var probe struct {
		Error bool `json:"error"`
	}
	if json.Unmarshal(result, &probe) == nil && probe.Error {
		outcome = "error"
	}
	d.metrics.RecordToolCall(name, outcome, time.Since(start))
	if d.events != nil {
		d.events.Publish(hub.CallEvent{
			Event:   hub.EventToolCall,
			OrgID:   orgID,
			Tool:    name,
			Outcome: outcome,
			At:      time.Now(),
		})
	}
	return result
}
