package utils

import (
	"strings"
	"unicode"
)

// SanitizeForLog sanitizes a string for safe logging by removing or escaping
// control characters that could cause log injection attacks. Request lines
// and URIs arrive straight off the wire and must never reach the log stream
// unescaped.
func SanitizeForLog(s string) string {
	if s == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n':
			result.WriteString("\\n")
		case r == '\r':
			result.WriteString("\\r")
		case r == '\t':
			result.WriteString("\\t")
		case unicode.IsControl(r):
			result.WriteString("?")
		case r == '\\':
			result.WriteString("\\\\")
		case unicode.IsPrint(r):
			result.WriteRune(r)
		default:
			result.WriteString("?")
		}
	}

	const maxLength = 256
	if result.Len() > maxLength {
		return result.String()[:maxLength] + "...[truncated]"
	}

	return result.String()
}
