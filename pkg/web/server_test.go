package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/velora-ai/velora/internal/metrics"
	"github.com/velora-ai/velora/pkg/agents"
	"github.com/velora-ai/velora/pkg/bridge"
	"github.com/velora-ai/velora/pkg/hub"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, orgID, agentID string) (agents.Config, error) {
	return agents.Config{}, nil
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(ctx context.Context, orgID, name string, args json.RawMessage) json.RawMessage {
	return json.RawMessage(`{}`)
}

func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	events := hub.New()
	b := bridge.New(bridge.Config{}, stubResolver{}, stubDispatcher{}, m, events)
	return NewServer(":0", b, reg, events)
}

func TestHealthz(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Status      string `json:"status"`
		ActiveCalls int64  `json:"active_calls"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.ActiveCalls != 0 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "velora_active_calls") {
		t.Error("expected relay metrics in exposition")
	}
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	s := newTestServer()

	for _, path := range []string{"/media", "/events"} {
		resp, err := s.app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 426 {
			t.Errorf("%s: expected 426 upgrade required, got %d", path, resp.StatusCode)
		}
	}
}
