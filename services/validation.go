// ABOUTME: Input validation and sanitization for upstream query terms
// ABOUTME: Prevents query-operator injection via user-supplied strings

package services

import "strings"

// SanitizeQueryTerm strips characters that carry meaning in the upstream
// encoded query syntax, plus control characters, so user input cannot
// append extra conditions to a lookup.
func SanitizeQueryTerm(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		switch r {
		case '^', '=', '!', '<', '>':
			return -1
		}
		return r
	}, s)
}

// sanitizeForLog removes control characters from strings to prevent log
// injection when including user input in error messages.
func sanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
