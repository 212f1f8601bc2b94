// Package scheduling calls the platform's calendar tool endpoints on
// behalf of an in-call model: availability checks, free-slot listings,
// and bookings. Failures never surface as call failures; every dispatch
// returns JSON the model can verbalize, with errors converted into a
// structured error payload.
package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/velora-ai/velora/internal/httpc"
)

// Tool names understood by the dispatcher. These match the function
// names advertised to the model.
const (
	ToolCheckAvailability = "checkAvailability"
	ToolGetAvailableSlots = "getAvailableSlots"
	ToolBookAppointment   = "bookAppointment"
)

// DefaultTimeout is the hard bound on one tool invocation.
const DefaultTimeout = 10 * time.Second

// Config holds the scheduling service connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("scheduling base URL is required")
	}
	return nil
}

// Client invokes the scheduling tool endpoints.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a scheduling client. A nil httpClient uses the
// shared default; a zero timeout uses DefaultTimeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = httpc.Client
	}
	return &Client{cfg: cfg, client: httpClient}, nil
}

var toolPaths = map[string]string{
	ToolCheckAvailability: "/v1/tools/availability/check",
	ToolGetAvailableSlots: "/v1/tools/availability/slots",
	ToolBookAppointment:   "/v1/tools/appointments",
}

// Dispatch invokes one named tool with the model's argument JSON and
// returns the JSON to hand back as the function result. orgID is
// injected into the payload so the scheduling service scopes the lookup.
// Dispatch never returns an error: timeouts, transport failures, and
// non-success statuses all become a structured error payload so the
// model can speak a graceful fallback instead of leaving dead air.
func (c *Client) Dispatch(ctx context.Context, orgID, name string, args json.RawMessage) json.RawMessage {
	path, ok := toolPaths[name]
	if !ok {
		slog.Warn("unknown tool requested", slog.String("tool", name))
		return errorPayload(fmt.Sprintf("unknown tool %q", name))
	}

	payload, err := injectOrg(args, orgID)
	if err != nil {
		slog.Warn("malformed tool arguments",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		return errorPayload("the request could not be understood")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errorPayload("the scheduling service is unavailable")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("tool dispatch failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return errorPayload("the scheduling service took too long to respond")
		}
		return errorPayload("the scheduling service is unavailable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("tool response read failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		return errorPayload("the scheduling service is unavailable")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("tool returned non-success status",
			slog.String("tool", name),
			slog.Int("status", resp.StatusCode),
		)
		return errorPayload(fmt.Sprintf("the scheduling service rejected the request (status %d)", resp.StatusCode))
	}

	if !json.Valid(body) {
		return errorPayload("the scheduling service returned an unreadable response")
	}
	return body
}

// injectOrg adds org_id to the argument object without disturbing the
// model's fields.
func injectOrg(args json.RawMessage, orgID string) ([]byte, error) {
	fields := make(map[string]any)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &fields); err != nil {
			return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
		}
	}
	if orgID != "" {
		fields["org_id"] = orgID
	}
	return json.Marshal(fields)
}

// errorPayload is the JSON shape returned to the model for any failed
// invocation.
func errorPayload(message string) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"error":   true,
		"message": message,
	})
	return out
}
