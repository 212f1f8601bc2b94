package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
log:
  level: debug
server:
  addr: ":9090"
  public_url: "https://relay.example.com"
model:
  model: gpt-4o-realtime-preview-2024-12-17
agents:
  base_url: "https://platform.example.com"
scheduling:
  base_url: "https://platform.example.com"
audio:
  output_format: g711_ulaw
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "velora.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SCHEDULING_API_TOKEN", "sched-tok")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Error("expected API key from environment")
	}
	if cfg.Scheduling.Token != "sched-tok" {
		t.Error("expected scheduling token from environment")
	}
	if cfg.Audio.OutputFormat != "g711_ulaw" {
		t.Errorf("unexpected output format %q", cfg.Audio.OutputFormat)
	}
	if cfg.Audio.ModelSampleRate != 24000 {
		t.Errorf("expected default model sample rate, got %d", cfg.Audio.ModelSampleRate)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(writeConfig(t, sampleYAML)); err == nil {
		t.Error("expected error without API key")
	}
}

func TestLoadRejectsBadFormat(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfgPath := writeConfig(t, `
agents:
  base_url: "https://platform.example.com"
scheduling:
  base_url: "https://platform.example.com"
audio:
  output_format: opus
`)
	if _, err := Load(cfgPath); err == nil {
		t.Error("expected error for unsupported output format")
	}
}

func TestPortOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "3000")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected PORT override, got %q", cfg.Server.Addr)
	}
}
