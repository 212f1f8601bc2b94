package telephony

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/velora-ai/velora/internal/httpc"
)

// DialerConfig holds the provider REST credentials for placing outbound
// calls.
type DialerConfig struct {
	BaseURL    string `yaml:"base_url"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	CallerID   string `yaml:"caller_id"`
}

// Validate checks that the dialer has everything needed to place a call.
func (c DialerConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("dialer base URL is required")
	}
	if c.AccountSID == "" || c.AuthToken == "" {
		return errors.New("dialer credentials are required")
	}
	if c.CallerID == "" {
		return errors.New("dialer caller ID is required")
	}
	return nil
}

// Dialer places outbound calls through the provider's Calls resource,
// pointing the call's media stream back at this service.
type Dialer struct {
	cfg    DialerConfig
	client *http.Client
}

// NewDialer creates a dialer. A nil client uses the shared default.
func NewDialer(cfg DialerConfig, client *http.Client) (*Dialer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = httpc.Client
	}
	return &Dialer{cfg: cfg, client: client}, nil
}

// Dial places a call to the given E.164 number and connects its media
// stream to streamURL. params become the stream's custom parameters and
// carry the organization/agent selection into the start message. Returns
// the provider call SID.
func (d *Dialer) Dial(ctx context.Context, to, streamURL string, params map[string]string) (string, error) {
	if !strings.HasPrefix(to, "+") {
		return "", fmt.Errorf("destination %q is not E.164", to)
	}

	twiml, err := streamInstructions(streamURL, params)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"To":    {to},
		"From":  {d.cfg.CallerID},
		"Twiml": {twiml},
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json",
		strings.TrimSuffix(d.cfg.BaseURL, "/"), d.cfg.AccountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build dial request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.cfg.AccountSID, d.cfg.AuthToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read dial response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("dial rejected (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("dial rejected: status %d", resp.StatusCode)
	}

	var result struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse dial response: %w", err)
	}
	if result.Sid == "" {
		return "", errors.New("dial response missing call sid")
	}
	return result.Sid, nil
}

type streamParameter struct {
	XMLName xml.Name `xml:"Parameter"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

type streamElement struct {
	XMLName    xml.Name `xml:"Stream"`
	URL        string   `xml:"url,attr"`
	Parameters []streamParameter
}

type connectElement struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  streamElement
}

type responseElement struct {
	XMLName xml.Name `xml:"Response"`
	Connect connectElement
}

// streamInstructions renders the call instructions that connect the
// answered call's media to our WebSocket endpoint.
func streamInstructions(streamURL string, params map[string]string) (string, error) {
	doc := responseElement{
		Connect: connectElement{
			Stream: streamElement{URL: streamURL},
		},
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Connect.Stream.Parameters = append(doc.Connect.Stream.Parameters,
			streamParameter{Name: name, Value: params[name]})
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render stream instructions: %w", err)
	}
	return string(out), nil
}
