// Package pacing delivers outbound telephony audio as fixed 20ms frames
// on a strict real-time cadence, absorbing the burstiness of model-side
// audio deltas behind a small jitter buffer.
package pacing

import (
	"errors"
	"sync"
	"time"

	"github.com/velora-ai/velora/pkg/audio"
)

// FrameBytes is the size of one outbound frame: 160 companded samples,
// 20ms at 8kHz.
const FrameBytes = 160

// SendFunc transmits one complete frame to the telephony leg. It is
// called from the pacing goroutine, never concurrently with itself.
type SendFunc func(frame []byte)

// Config controls frame cadence and buffering.
type Config struct {
	// TickInterval is the pacing period. One frame goes out per tick.
	TickInterval time.Duration

	// PrebufferFrames is how many frames must be queued before
	// transmission starts.
	PrebufferFrames int

	// MaxUnderrunRun is how many consecutive silence-filled ticks are
	// tolerated before the queue reverts to prebuffering. A long run
	// means the model has gone quiet, not that it is merely bursty.
	MaxUnderrunRun int
}

// DefaultConfig returns the production pacing parameters: 20ms frames
// with a 100ms prebuffer.
func DefaultConfig() Config {
	return Config{
		TickInterval:    20 * time.Millisecond,
		PrebufferFrames: 5,
		MaxUnderrunRun:  25,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if c.PrebufferFrames < 1 {
		return errors.New("prebuffer must be at least one frame")
	}
	if c.MaxUnderrunRun < 1 {
		return errors.New("max underrun run must be at least one tick")
	}
	return nil
}

// Queue is the per-call outbound frame buffer. Push accepts companded
// audio in arbitrary chunk sizes; the pacing loop emits exactly one
// 160-byte frame per tick once the prebuffer fills. Partial trailing
// data is held until the next Push completes a frame, never padded or
// dropped.
type Queue struct {
	cfg  Config
	send SendFunc

	mu          sync.Mutex
	frames      [][]byte
	partial     []byte
	holding     bool
	underruns   int
	framesSent  uint64
	silenceSent uint64

	done    chan struct{}
	stopped sync.Once
}

// NewQueue creates a queue in the holding state. Call Start to begin the
// pacing loop.
func NewQueue(cfg Config, send SendFunc) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if send == nil {
		return nil, errors.New("send function is required")
	}
	return &Queue{
		cfg:     cfg,
		send:    send,
		holding: true,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the pacing goroutine. It returns immediately.
func (q *Queue) Start() {
	go q.run()
}

func (q *Queue) run() {
	ticker := time.NewTicker(q.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.tick()
		}
	}
}

// tick emits at most one frame. The send happens outside the lock so a
// slow telephony write never blocks Push.
func (q *Queue) tick() {
	q.mu.Lock()

	if q.holding {
		if len(q.frames) < q.cfg.PrebufferFrames {
			q.mu.Unlock()
			return
		}
		q.holding = false
		q.underruns = 0
	}

	var frame []byte
	if len(q.frames) > 0 {
		frame = q.frames[0]
		q.frames = q.frames[1:]
		q.underruns = 0
		q.framesSent++
	} else {
		frame = audio.SilenceFrame(FrameBytes)
		q.silenceSent++
		q.underruns++
		if q.underruns >= q.cfg.MaxUnderrunRun {
			q.holding = true
			q.underruns = 0
		}
	}
	q.mu.Unlock()

	q.send(frame)
}

// Push appends companded audio to the queue, re-slicing it into exact
// 160-byte frames. Leftover bytes are carried into the next Push.
func (q *Queue) Push(data []byte) {
	if len(data) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	buf := append(q.partial, data...)
	for len(buf) >= FrameBytes {
		frame := make([]byte, FrameBytes)
		copy(frame, buf[:FrameBytes])
		q.frames = append(q.frames, frame)
		buf = buf[FrameBytes:]
	}
	q.partial = append([]byte(nil), buf...)
}

// Clear discards all buffered audio, including the partial frame, and
// reverts to the holding state so the next response prebuffers again.
// Used on barge-in.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.frames = nil
	q.partial = nil
	q.holding = true
	q.underruns = 0
}

// Flush transmits everything still buffered without waiting for ticks.
// A trailing partial frame is padded to full length with silence. The
// queue reverts to holding. Used at teardown so trailing audio is not
// dropped.
func (q *Queue) Flush() {
	q.mu.Lock()
	frames := q.frames
	if len(q.partial) > 0 {
		frame := audio.SilenceFrame(FrameBytes)
		copy(frame, q.partial)
		frames = append(frames, frame)
	}
	q.frames = nil
	q.partial = nil
	q.holding = true
	q.underruns = 0
	q.framesSent += uint64(len(frames))
	q.mu.Unlock()

	for _, frame := range frames {
		q.send(frame)
	}
}

// Depth reports the number of complete frames currently queued.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Stats reports frames transmitted and silence frames inserted.
func (q *Queue) Stats() (sent, silence uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.framesSent, q.silenceSent
}

// Stop halts the pacing loop. Safe to call more than once.
func (q *Queue) Stop() {
	q.stopped.Do(func() { close(q.done) })
}
