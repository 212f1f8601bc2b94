// Package web terminates the relay's HTTP surface: the telephony media
// WebSocket, a monitoring event feed, a liveness check, and Prometheus
// metrics.
package web

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velora-ai/velora/internal/log"
	"github.com/velora-ai/velora/pkg/bridge"
	"github.com/velora-ai/velora/pkg/hub"
)

// Server hosts the relay endpoints. One media WebSocket connection is
// one call.
type Server struct {
	app    *fiber.App
	addr   string
	bridge *bridge.Bridge
	events *hub.Hub
}

// NewServer builds the HTTP surface around a bridge. reg is the metrics
// registry exposed at /metrics; events backs the /events feed.
func NewServer(addr string, b *bridge.Bridge, reg *prometheus.Registry, events *hub.Hub) *Server {
	s := &Server{addr: addr, bridge: b, events: events}

	app := fiber.New(fiber.Config{
		AppName:               "velora",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", s.handleHealthz)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	app.Use("/media", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/media", websocket.New(s.handleMedia))

	app.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/events", websocket.New(s.handleEvents))

	s.app = app
	return s
}

func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "ok",
		"active_calls": s.bridge.ActiveCalls(),
	})
}

// handleMedia runs one call on the connection's goroutine.
func (s *Server) handleMedia(conn *websocket.Conn) {
	defer conn.Close()
	s.bridge.HandleCall(conn)
}

// handleEvents attaches a monitoring client to the call event feed.
func (s *Server) handleEvents(conn *websocket.Conn) {
	hub.NewClient(s.events, conn).Run()
}

// Start listens until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown drains the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
