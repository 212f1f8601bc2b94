package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// testClient registers a bare client without a websocket connection.
// The hub only touches the send channel, so the pumps are not needed.
func testClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{id: "test", hub: h, send: make(chan []byte, buffer)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out; is the hub running?")
	}
	return c
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client count never reached %d, got %d", want, h.ClientCount())
}

func TestPublishReachesClients(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := testClient(t, h, 4)
	waitForCount(t, h, 1)

	h.Publish(CallEvent{
		Event:     EventCallStarted,
		StreamSid: "MZ100",
		OrgID:     "org_1",
		At:        time.Now(),
	})

	select {
	case raw := <-c.send:
		var ev CallEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if ev.Event != EventCallStarted || ev.StreamSid != "MZ100" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never arrived")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := testClient(t, h, 1)
	waitForCount(t, h, 1)

	// First event fills the buffer, second finds it full.
	h.Publish(CallEvent{Event: EventBargeIn, At: time.Now()})
	h.Publish(CallEvent{Event: EventBargeIn, At: time.Now()})

	waitForCount(t, h, 0)

	// The hub closes the channel when it drops the client.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-slow.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel never closed")
		}
	}
}

func TestRunStopClosesClients(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := testClient(t, h, 4)
	waitForCount(t, h, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run never returned")
	}

	if _, ok := <-c.send; ok {
		t.Error("expected send channel closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}
