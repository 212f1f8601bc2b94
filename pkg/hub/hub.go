// Package hub fans call lifecycle events out to monitoring clients
// over WebSocket using a channel-based broadcast loop. Slow clients
// are dropped rather than allowed to stall the relay.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/velora-ai/velora/internal/log"
)

// Hub maintains the set of connected monitoring clients and broadcasts
// call events to all of them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// New creates a hub. Run must be started before clients connect.
func New() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives registration and broadcast until ctx is cancelled.
// This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("event feed client connected", "client_id", client.id, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("event feed client disconnected", "client_id", client.id, "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full. Drop it rather than
					// block the broadcast loop.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropped slow event feed client", "client_id", client.id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish encodes an event and queues it for broadcast. Events are
// dropped when the broadcast channel is full; the feed is advisory and
// must never back-pressure a call.
func (h *Hub) Publish(ev CallEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn("event feed encode failed", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn("event feed channel full, dropping event", "event", ev.Event)
	}
}

// ClientCount returns the number of connected monitoring clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
