// Package brand holds the caller-owned sender identity used to build
// system prompts. Persisted as YAML across sessions; mutated only by
// explicit edits.
package brand

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Sender struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	Email string `yaml:"email"`
}

type Links struct {
	Calendar string `yaml:"calendar,omitempty"`
	Article  string `yaml:"article,omitempty"`
	Website  string `yaml:"website,omitempty"`
}

type Palette struct {
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
	Text      string `yaml:"text"`
	Accent    string `yaml:"accent"`
}

type Config struct {
	Name        string  `yaml:"name"`
	Sender      Sender  `yaml:"sender"`
	Credentials string  `yaml:"credentials,omitempty"`
	Links       Links   `yaml:"links,omitempty"`
	Colors      Palette `yaml:"colors"`
}

// Default returns the out-of-the-box brand used until the caller edits
// their own.
func Default() Config {
	return Config{
		Name: "yellowCircle",
		Sender: Sender{
			Name:  "Christopher Cooper",
			Title: "GTM and Marketing Operations consultant",
			Email: "hello@yellowcircle.io",
		},
		Credentials: "- 10+ years in marketing operations and GTM systems\n- Built lifecycle programs for B2B SaaS companies",
		Links: Links{
			Website: "https://yellowcircle.io",
		},
		Colors: Palette{
			Primary:   "#FFD700",
			Secondary: "#1A1A2E",
			Text:      "#E0E0E0",
			Accent:    "#FF6B6B",
		},
	}
}

// SignOffName returns the first name used in the email sign-off.
func (c Config) SignOffName() string {
	name := strings.TrimSpace(c.Sender.Name)
	if name == "" {
		return ""
	}
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Sender.Name) == "" {
		return fmt.Errorf("brand sender name is required")
	}
	return nil
}

// Load reads a brand config from path. A missing file yields Default.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read brand config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse brand config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the brand config to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create brand config dir: %w", err)
		}
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode brand config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write brand config: %w", err)
	}
	return nil
}
