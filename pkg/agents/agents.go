// Package agents resolves per-call agent configuration: the greeting,
// system prompt, voice, and language an organization has configured for
// a given agent. Lookups hit the platform's configuration service and
// are cached process-wide with a short TTL since configuration is
// read-only for the duration of a call.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/velora-ai/velora/internal/httpc"
)

// DefaultAgentID selects the organization's default agent when the call
// setup did not name one.
const DefaultAgentID = "default"

// ErrNotFound indicates the organization has no such agent. Fatal for
// the call.
var ErrNotFound = errors.New("agent not found")

// Config is the per-agent conversational configuration.
type Config struct {
	Greeting     string `json:"greeting"`
	Language     string `json:"language"`
	SystemPrompt string `json:"system_prompt"`
	Voice        string `json:"voice"`
}

// Resolver looks up agent configuration by organization and agent id.
type Resolver interface {
	Resolve(ctx context.Context, orgID, agentID string) (Config, error)
}

// HTTPResolver queries the configuration service over HTTP.
type HTTPResolver struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPResolver creates a resolver against the configuration service.
// A nil client uses the shared default.
func NewHTTPResolver(baseURL, token string, client *http.Client) *HTTPResolver {
	if client == nil {
		client = httpc.Client
	}
	return &HTTPResolver{baseURL: baseURL, token: token, client: client}
}

// Resolve fetches one agent's configuration. An empty agentID resolves
// the organization's default agent.
func (r *HTTPResolver) Resolve(ctx context.Context, orgID, agentID string) (Config, error) {
	if orgID == "" {
		return Config{}, errors.New("organization id is required")
	}
	if agentID == "" {
		agentID = DefaultAgentID
	}

	url := fmt.Sprintf("%s/v1/orgs/%s/agents/%s", r.baseURL, orgID, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Config{}, fmt.Errorf("build agent lookup: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Config{}, fmt.Errorf("agent lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Config{}, fmt.Errorf("%w: org %s agent %s", ErrNotFound, orgID, agentID)
	case resp.StatusCode != http.StatusOK:
		return Config{}, fmt.Errorf("agent lookup: status %d", resp.StatusCode)
	}

	var cfg Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode agent config: %w", err)
	}
	return cfg, nil
}

type cacheEntry struct {
	cfg     Config
	expires time.Time
}

// Cache wraps a Resolver with a TTL cache. Only successful lookups are
// cached; errors always pass through to the inner resolver next time.
type Cache struct {
	inner Resolver
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// DefaultCacheTTL bounds how stale a cached agent configuration can be.
const DefaultCacheTTL = 30 * time.Second

// NewCache wraps inner with a TTL cache. A non-positive ttl uses the
// default.
func NewCache(inner Resolver, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Resolve returns the cached configuration when fresh, otherwise asks
// the inner resolver.
func (c *Cache) Resolve(ctx context.Context, orgID, agentID string) (Config, error) {
	if agentID == "" {
		agentID = DefaultAgentID
	}
	key := orgID + "/" + agentID

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expires) {
		return entry.cfg, nil
	}

	cfg, err := c.inner.Resolve(ctx, orgID, agentID)
	if err != nil {
		return Config{}, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{cfg: cfg, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return cfg, nil
}
