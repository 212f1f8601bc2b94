// Package config loads the velora service configuration from a YAML
// file with environment overrides for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/velora-ai/velora/pkg/scheduling"
	"github.com/velora-ai/velora/pkg/telephony"
)

// Config is the full service configuration.
type Config struct {
	Log        LogConfig              `yaml:"log"`
	Server     ServerConfig           `yaml:"server"`
	Model      ModelConfig            `yaml:"model"`
	Agents     AgentsConfig           `yaml:"agents"`
	Scheduling scheduling.Config      `yaml:"scheduling"`
	Dialer     telephony.DialerConfig `yaml:"dialer"`
	Audio      AudioConfig            `yaml:"audio"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// PublicURL is the externally reachable base URL, used to build the
	// media stream URL handed to the telephony provider on dial-out.
	PublicURL string `yaml:"public_url"`
}

// ModelConfig controls the upstream conversational-model connection.
// The API key comes only from the environment, never the file.
type ModelConfig struct {
	URL    string `yaml:"url"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"-"`
}

// AgentsConfig controls agent-configuration lookups.
type AgentsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"-"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AudioConfig controls the model-side audio format.
type AudioConfig struct {
	// OutputFormat is what the model emits: "pcm16" or "g711_ulaw".
	// Companded output at 8kHz bypasses resampling and pacing.
	OutputFormat string `yaml:"output_format"`

	// ModelSampleRate is the model's PCM rate when OutputFormat is
	// pcm16.
	ModelSampleRate int `yaml:"model_sample_rate"`
}

// Load reads the configuration file, applies defaults and environment
// overrides, and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Audio.OutputFormat == "" {
		c.Audio.OutputFormat = "pcm16"
	}
	if c.Audio.ModelSampleRate == 0 {
		c.Audio.ModelSampleRate = 24000
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("AGENTS_API_TOKEN"); v != "" {
		c.Agents.Token = v
	}
	if v := os.Getenv("SCHEDULING_API_TOKEN"); v != "" {
		c.Scheduling.Token = v
	}
	if v := os.Getenv("TELEPHONY_AUTH_TOKEN"); v != "" {
		c.Dialer.AuthToken = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}

// Validate checks the sections the relay cannot run without. Dialer
// settings are validated lazily by the dial-out path since inbound-only
// deployments omit them.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Agents.BaseURL == "" {
		return errors.New("agents base URL is required")
	}
	if err := c.Scheduling.Validate(); err != nil {
		return err
	}
	switch c.Audio.OutputFormat {
	case "pcm16", "g711_ulaw":
	default:
		return fmt.Errorf("unsupported audio output format %q", c.Audio.OutputFormat)
	}
	if c.Audio.ModelSampleRate < 8000 {
		return fmt.Errorf("model sample rate %d is below telephony rate", c.Audio.ModelSampleRate)
	}
	return nil
}
