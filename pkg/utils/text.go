// Package utils provides shared helpers for logging, text and vectors.
package utils

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
// A maxLen of 0 or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
