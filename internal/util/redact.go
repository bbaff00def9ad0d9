package util

import (
	"github.com/yellowcircle/outreach-engine/pkg/outreach/redact"
)

// RedactSecrets removes obvious secret-bearing substrings from error/log strings.
//
// This is intentionally conservative: it should be safe to call on any message,
// including user-provided inputs and upstream error strings.
func RedactSecrets(s string) string {
	return redact.Secrets(s)
}
