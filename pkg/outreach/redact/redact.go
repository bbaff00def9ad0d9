package redact

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens).
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that sometimes leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key|groq[_-]?api[_-]?key|resend[_-]?api[_-]?key)\b\s*[:=]\s*[^\s"']+`)

	// Bare provider key prefixes (Groq "gsk_", Resend "re_").
	providerKeyRe = regexp.MustCompile(`\b(gsk|re)_[A-Za-z0-9_-]{8,}\b`)
)

// Secrets removes obvious secret-bearing substrings from error/log strings.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = providerKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}
