// Package realtime manages the upstream conversational-model leg of a
// call: the WebSocket transport and the per-call session state machine
// covering greeting, consent gating, barge-in, and tool-call dispatch.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Defaults for the upstream connection.
const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 120 * time.Second
	pingInterval     = 30 * time.Second
)

// ClientConfig holds upstream connection settings.
type ClientConfig struct {
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"-"`
}

// Validate checks the client configuration.
func (c ClientConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("model API key is required")
	}
	return nil
}

// Client is the WebSocket transport to the model. Writes are serialized
// behind a mutex; reads belong to a single owner calling ReadEvent in a
// loop. One Client serves one call and is discarded on close, never
// reconnected.
type Client struct {
	conn *websocket.Conn

	wsMu   sync.Mutex
	closed bool
	done   chan struct{}
}

// Dial connects and authenticates to the model endpoint.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf("%s?model=%s", cfg.URL, cfg.Model), header)
	if err != nil {
		return nil, fmt.Errorf("connect to model: %w", err)
	}

	c := &Client{conn: conn, done: make(chan struct{})}

	conn.SetPingHandler(func(appData string) error {
		c.wsMu.Lock()
		defer c.wsMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	go c.keepAlive()

	return c, nil
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			if c.closed {
				c.wsMu.Unlock()
				return
			}
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// SendEvent writes one JSON event to the model.
func (c *Client) SendEvent(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.closed {
		return errors.New("model connection closed")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// ReadEvent blocks until the next upstream message. The caller owns the
// read loop; a returned error means the connection is gone and the call
// should end.
func (c *Client) ReadEvent() ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read model event: %w", err)
	}
	return raw, nil
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
