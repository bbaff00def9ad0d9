package core

import (
	"context"
	"time"
)

// GenerateOptions carries per-call parameters for the LLM capability.
type GenerateOptions struct {
	// APIKey is the caller-supplied key for direct providers. The hosted
	// proxy ignores it.
	APIKey       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// Stage is forwarded to the hosted proxy for server-side accounting.
	Stage Stage

	// Context is optional free-form metadata forwarded to the hosted proxy.
	Context map[string]string
}

// GenerateResult is the raw completion plus any server-side quota report.
type GenerateResult struct {
	Text string

	// QuotaRemaining is set only by the hosted proxy, which is
	// authoritative for the free lane when present.
	QuotaRemaining *int
}

// Generator is the LLM capability contract.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (GenerateResult, error)

	// Name identifies the implementation for logging ("gemini", "groq", "proxy").
	Name() string
}

// SendRequest is one outbound email for the ESP capability.
type SendRequest struct {
	To      string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
	Tags    []string

	// APIKey overrides the sender's default key when set.
	APIKey string
}

const (
	SendStatusSent  = "sent"
	SendStatusError = "error"
)

// SendResult reports the outcome of one ESP send.
type SendResult struct {
	ID     string
	Status string
}

// Sender is the ESP capability contract.
type Sender interface {
	SendEmail(ctx context.Context, req SendRequest) (SendResult, error)

	// IsConfigured reports whether a server-side default key exists,
	// independent of any caller-supplied key.
	IsConfigured() bool
}

// Contact is one prospect engagement record in the content store.
type Contact struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	Company        string
	Title          string
	Industry       string
	Trigger        Trigger
	TriggerDetails string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ContactPatch is a partial update; nil fields are left unchanged.
type ContactPatch struct {
	Status     *string
	LastRunID  *string
	LastSentAt *time.Time
}

// ContactStore persists prospect engagement state. Writes are
// fire-and-forget from the engine's perspective: failures are logged by
// the caller and never abort a run.
type ContactStore interface {
	Create(ctx context.Context, c Contact) error
	Update(ctx context.Context, email string, patch ContactPatch) error
}

// TransientError marks an error as retryable by batch workers.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is retryable but caps its own retry budget below
// the worker default.
type LimitedTransientError struct {
	Err     error
	Retries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MaxExtraRetries implements the worker retry-cap contract.
func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil || e.Retries < 0 {
		return 0
	}
	return e.Retries
}
