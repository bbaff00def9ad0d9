// Package httpx holds the shared error shape for the engine's outbound
// HTTP clients (hosted proxy, Groq, Resend).
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/redact"
)

// errorEnvelope matches the {"error": {...}} shape used by the hosted
// proxy and by OpenAI-compatible APIs. Extra fields are ignored.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Error is a sanitized summary of a non-2xx provider response.
//
// Important: do not include raw response bodies here (can leak PII/keys).
type Error struct {
	Op         string
	StatusCode int
	Status     string
	Type       string
	Code       string
	Message    string

	// Snippet is a redacted, truncated hint for non-envelope responses.
	Snippet string
}

func (e *Error) Error() string {
	if e == nil {
		return "provider http error"
	}
	parts := []string{
		fmt.Sprintf("provider api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Type) != "" {
		parts = append(parts, "type="+strings.TrimSpace(e.Type))
	}
	if strings.TrimSpace(e.Code) != "" {
		parts = append(parts, "code="+strings.TrimSpace(e.Code))
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+redact.Secrets(strings.TrimSpace(e.Message)))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// NewError builds a sanitized Error from a non-2xx response.
func NewError(op string, resp *http.Response, body []byte) *Error {
	h := &Error{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.Type = strings.TrimSpace(env.Error.Type)
		h.Code = strings.TrimSpace(env.Error.Code)
		h.Message = strings.TrimSpace(env.Error.Message)
		if h.Type != "" || h.Code != "" || h.Message != "" {
			return h
		}
	}

	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
