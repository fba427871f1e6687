// ABOUTME: Tests for query-term sanitization

package services

import "testing"

func TestSanitizeQueryTerm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain username", "jane.doe", "jane.doe"},
		{"spaces kept", "Network Ops", "Network Ops"},
		{"query joiner stripped", "jdoe^active=false", "jdoeactivefalse"},
		{"operators stripped", "a=b!=c<d>e", "abcde"},
		{"control characters stripped", "jdoe\n\t\x00", "jdoe"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeQueryTerm(tt.input); got != tt.want {
				t.Errorf("SanitizeQueryTerm(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
