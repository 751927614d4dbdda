package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		markers []string
		absent  []string
	}{
		{
			name:    "contact details",
			input:   "Email me at tony@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242.",
			markers: []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"},
			absent:  []string{"tony@example.com", "4242"},
		},
		{
			name:    "dictated api key",
			input:   "my groq key is gsk_abcdefghijklmnopqrstuvwx please save it",
			markers: []string{"[REDACTED_KEY]"},
			absent:  []string{"gsk_abc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := RedactPII(tt.input)
			if !changed {
				t.Fatalf("changed = false, want true")
			}
			for _, m := range tt.markers {
				if !strings.Contains(out, m) {
					t.Fatalf("output missing marker %q: %q", m, out)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Fatalf("output still contains %q: %q", a, out)
				}
			}
		})
	}
}

func TestRedactPIILeavesPlainText(t *testing.T) {
	in := "what is the weather like in rome"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("RedactPII(%q) = %q, %v", in, out, changed)
	}
}
