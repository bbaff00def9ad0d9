package prompt

import (
	"encoding/json"
	"strings"

	"github.com/yellowcircle/outreach-engine/pkg/outreach/core"
)

// ExtractJSONObject returns the first balanced {...} substring of raw.
// Braces inside JSON strings do not count toward the balance. Returns
// false when no balanced object exists.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseArtifact extracts and decodes a {subject, body} object from the
// provider's raw text. Either both fields come back non-empty or the
// stage fails with MalformedResponseError; there is no partial result.
func ParseArtifact(raw string, stage core.Stage) (core.EmailArtifact, error) {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return core.EmailArtifact{}, &core.MalformedResponseError{
			Stage:   stage,
			Reason:  "no JSON object in response",
			Snippet: snippet(raw),
		}
	}
	var art core.EmailArtifact
	if err := json.Unmarshal([]byte(obj), &art); err != nil {
		return core.EmailArtifact{}, &core.MalformedResponseError{
			Stage:   stage,
			Reason:  "invalid JSON: " + err.Error(),
			Snippet: snippet(obj),
		}
	}
	art.Subject = strings.TrimSpace(art.Subject)
	art.Body = strings.TrimSpace(art.Body)
	if art.Subject == "" || art.Body == "" {
		return core.EmailArtifact{}, &core.MalformedResponseError{
			Stage:   stage,
			Reason:  "missing subject or body",
			Snippet: snippet(obj),
		}
	}
	return art, nil
}

func snippet(s string) string {
	const max = 120
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
