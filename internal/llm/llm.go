// Package llm selects the generation backend for a run: the hosted
// proxy for keyless callers with free credits, or a direct provider
// client otherwise.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yellowcircle/outreach-engine/internal/llm/gemini"
	"github.com/yellowcircle/outreach-engine/internal/llm/groq"
	"github.com/yellowcircle/outreach-engine/internal/llm/proxy"
	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderGroq   Provider = "groq"
)

type Config struct {
	Provider Provider
	ProxyURL string

	// Operator defaults; a caller-supplied key overrides these per run.
	GeminiAPIKey string
	GroqAPIKey   string

	GeminiModel string
	GroqModel   string

	// Base URL overrides for testing.
	GeminiBaseURL string
	GroqBaseURL   string
}

// Factory hands out Generators. The proxy client is shared; direct
// clients are built per run because the key can differ per caller.
type Factory struct {
	cfg Config

	mu    sync.Mutex
	proxy *proxy.Client
}

func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

// Select returns the Generator for a run. useProxy is decided by the
// quota ledger: no caller key and free credits remaining.
func (f *Factory) Select(ctx context.Context, callerKey string, useProxy bool) (core.Generator, error) {
	if useProxy {
		return f.Proxy()
	}
	return f.Direct(ctx, callerKey)
}

// Proxy returns the shared hosted-proxy client.
func (f *Factory) Proxy() (*proxy.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proxy != nil {
		return f.proxy, nil
	}
	p, err := proxy.New(f.cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	f.proxy = p
	return p, nil
}

// Direct returns a provider client keyed with the caller's key when
// present, or the operator default otherwise.
func (f *Factory) Direct(ctx context.Context, callerKey string) (core.Generator, error) {
	callerKey = strings.TrimSpace(callerKey)
	switch f.cfg.Provider {
	case ProviderGemini:
		key := callerKey
		if key == "" {
			key = f.cfg.GeminiAPIKey
		}
		return gemini.New(ctx, gemini.Config{
			APIKey:  key,
			Model:   f.cfg.GeminiModel,
			BaseURL: f.cfg.GeminiBaseURL,
		})
	case ProviderGroq:
		key := callerKey
		if key == "" {
			key = f.cfg.GroqAPIKey
		}
		return groq.New(groq.Config{
			APIKey:  key,
			Model:   f.cfg.GroqModel,
			BaseURL: f.cfg.GroqBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", f.cfg.Provider)
	}
}
