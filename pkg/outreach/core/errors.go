package core

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing or invalid prospect field. It is
// resolved before any network call and never reaches the pipeline.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid prospect: field %s: %s", e.Field, e.Reason)
}

// QuotaExhaustedError is a ledger denial. It is distinct from provider
// and network failures so callers can prompt for an API key.
type QuotaExhaustedError struct {
	Lane string
}

func (e *QuotaExhaustedError) Error() string {
	if e == nil || e.Lane == "" {
		return "generation quota exhausted"
	}
	return fmt.Sprintf("generation quota exhausted: lane=%s", e.Lane)
}

// RateLimitError is a 429-class response from the hosted proxy. It
// forces the free lane to zero; the caller should prompt for a key.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	if e == nil || e.Err == nil {
		return "hosted proxy rate limit exceeded"
	}
	return "hosted proxy rate limit exceeded: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MalformedResponseError means the provider's raw text did not yield a
// complete {subject, body} object. It is not retried.
type MalformedResponseError struct {
	Stage  Stage
	Reason string

	// Snippet is a truncated hint of the raw response; bodies are not
	// carried whole since they can be large and are already logged upstream.
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	parts := []string{fmt.Sprintf("malformed provider response: stage=%s", e.Stage)}
	if strings.TrimSpace(e.Reason) != "" {
		parts = append(parts, "reason="+e.Reason)
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "snippet="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// ProviderUnavailableError wraps transport-level failures talking to an
// LLM or ESP provider.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	if e == nil || e.Err == nil {
		return "provider unavailable"
	}
	return fmt.Sprintf("provider %s unavailable: %s", e.Provider, e.Err.Error())
}

func (e *ProviderUnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ESPNotConfiguredError means no usable send key exists, caller-supplied
// or server default. Sending must refuse rather than fail silently.
type ESPNotConfiguredError struct{}

func (e *ESPNotConfiguredError) Error() string {
	return "email sending is not configured: no API key available"
}

// AlreadySentError guards the one-off pathway against duplicate sends of
// the same run's artifact.
type AlreadySentError struct {
	RunID     string
	MessageID string
}

func (e *AlreadySentError) Error() string {
	if e == nil || e.MessageID == "" {
		return fmt.Sprintf("run %s was already sent", e.RunID)
	}
	return fmt.Sprintf("run %s was already sent (message %s)", e.RunID, e.MessageID)
}
