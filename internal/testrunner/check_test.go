package testrunner

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		truncated bool
	}{
		{name: "short", in: "boom", truncated: false},
		{name: "exact limit", in: strings.Repeat("a", maxCapturedOutput), truncated: false},
		{name: "ascii over limit", in: strings.Repeat("a", maxCapturedOutput+10), truncated: true},
		// The byte at the limit falls inside a three-byte rune.
		{name: "multi-byte over limit", in: "a" + strings.Repeat("€", maxCapturedOutput/3+1), truncated: true},
		{name: "four-byte runes", in: strings.Repeat("😀", maxCapturedOutput/4+1), truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in)
			if !utf8.ValidString(got) {
				t.Fatalf("truncate produced invalid UTF-8 at the cut")
			}
			if !tt.truncated {
				if got != tt.in {
					t.Errorf("expected input unchanged")
				}
				return
			}
			kept, ok := strings.CutSuffix(got, "\n... (truncated)")
			if !ok {
				t.Fatalf("expected truncation marker, got suffix %q", got[len(got)-20:])
			}
			if len(kept) > maxCapturedOutput {
				t.Errorf("kept %d bytes, limit %d", len(kept), maxCapturedOutput)
			}
			if !strings.HasPrefix(tt.in, kept) {
				t.Error("kept output is not a prefix of the input")
			}
		})
	}
}
