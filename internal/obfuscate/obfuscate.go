// Package obfuscate centralizes redaction helpers for values that must not
// reach logs in clear text.
package obfuscate

import (
	"strings"
)

// Secret masks API keys and bearer credentials for logging.
//   - length <= 4  → all asterisks of same length
//   - 5..12        → keep first 2 characters
//   - > 12         → keep first 6 characters, "...", last 4 characters
//
// Values with a "$2" bcrypt prefix are reported as "bcrypt-hash".
func Secret(s string) string {
	if strings.HasPrefix(s, "$2") {
		return "bcrypt-hash"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	if len(s) <= 12 {
		return s[:2] + strings.Repeat("*", len(s)-2)
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// Email keeps the first character of the local part and the full domain:
// "jane.doe@example.com" becomes "j*******@example.com". Strings without
// an "@" are masked entirely.
func Email(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return strings.Repeat("*", len(s))
	}
	local, domain := s[:at], s[at:]
	return local[:1] + strings.Repeat("*", len(local)-1) + domain
}

// Text shortens free-form user text for log lines, keeping at most n runes.
func Text(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
