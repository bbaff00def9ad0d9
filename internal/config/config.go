// Package config loads engine configuration from the environment.
// Values here are session-level defaults; flags and per-run inputs
// override them at the command layer.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Data directory for quota state, brand config, contacts, and the
	// local canvas store.
	DataDir string `env:"OUTREACH_DATA_DIR" envDefault:".outreach"`

	// Provider selection for direct generation.
	Provider string `env:"OUTREACH_PROVIDER" envDefault:"groq"`

	ProxyURL string `env:"OUTREACH_PROXY_URL"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GroqAPIKey   string `env:"GROQ_API_KEY"`
	GroqModel    string `env:"GROQ_MODEL" envDefault:"llama-3.3-70b-versatile"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	FromAddress  string `env:"OUTREACH_FROM" envDefault:"hello@yellowcircle.io"`
	ReplyTo      string `env:"OUTREACH_REPLY_TO"`

	// IsClient marks unlimited-client sessions; no counters apply.
	IsClient bool `env:"OUTREACH_CLIENT_SESSION"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) QuotaPath() string    { return filepath.Join(c.DataDir, "quota.json") }
func (c Config) BrandPath() string    { return filepath.Join(c.DataDir, "brand.yaml") }
func (c Config) ContactsPath() string { return filepath.Join(c.DataDir, "contacts.db") }
func (c Config) CanvasPath() string   { return filepath.Join(c.DataDir, "canvas.db") }
func (c Config) SentLogPath() string  { return filepath.Join(c.DataDir, "sent.json") }
