package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testDialerConfig(baseURL string) DialerConfig {
	return DialerConfig{
		BaseURL:    baseURL,
		AccountSID: "AC123",
		AuthToken:  "secret",
		CallerID:   "+15550001111",
	}
}

func TestDialerConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DialerConfig)
		wantErr bool
	}{
		{"valid", func(c *DialerConfig) {}, false},
		{"no base url", func(c *DialerConfig) { c.BaseURL = "" }, true},
		{"no account", func(c *DialerConfig) { c.AccountSID = "" }, true},
		{"no token", func(c *DialerConfig) { c.AuthToken = "" }, true},
		{"no caller id", func(c *DialerConfig) { c.CallerID = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testDialerConfig("https://api.example.com")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDialPlacesCall(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "CA999", "status": "queued"}`))
	}))
	defer srv.Close()

	d, err := NewDialer(testDialerConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}

	sid, err := d.Dial(context.Background(), "+15559990000",
		"wss://relay.example.com/media",
		map[string]string{"agent_id": "agent_2", "org_id": "org_1"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if sid != "CA999" {
		t.Errorf("expected call sid CA999, got %q", sid)
	}

	if gotPath != "/Accounts/AC123/Calls.json" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Error("basic auth credentials not sent")
	}
	if got := gotForm["To"]; len(got) != 1 || got[0] != "+15559990000" {
		t.Errorf("unexpected To: %v", got)
	}
	if got := gotForm["From"]; len(got) != 1 || got[0] != "+15550001111" {
		t.Errorf("unexpected From: %v", got)
	}

	twiml := gotForm["Twiml"][0]
	for _, want := range []string{
		`url="wss://relay.example.com/media"`,
		`name="agent_id"`,
		`value="agent_2"`,
		`name="org_id"`,
	} {
		if !strings.Contains(twiml, want) {
			t.Errorf("stream instructions missing %s: %s", want, twiml)
		}
	}
}

func TestDialRejectsNonE164(t *testing.T) {
	d, err := NewDialer(testDialerConfig("https://api.example.com"), nil)
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	if _, err := d.Dial(context.Background(), "5551234", "wss://x/media", nil); err == nil {
		t.Error("expected error for non-E.164 number")
	}
}

func TestDialSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": 21211, "message": "Invalid 'To' phone number"}`))
	}))
	defer srv.Close()

	d, err := NewDialer(testDialerConfig(srv.URL), srv.Client())
	if err != nil {
		t.Fatalf("NewDialer: %v", err)
	}
	_, err = d.Dial(context.Background(), "+15550000000", "wss://x/media", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid 'To' phone number") {
		t.Errorf("expected provider message in error, got %v", err)
	}
}
