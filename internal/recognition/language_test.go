/**
 * Language detector tests
 */

package recognition

import (
	"testing"

	"github.com/pemistahl/lingua-go"
)

func TestDetectReturnsISOCode(t *testing.T) {
	detector := NewLanguageDetector([]lingua.Language{lingua.English, lingua.Spanish})

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"english", "this stainless steel bottle keeps drinks cold all day", "en"},
		{"spanish", "esta botella de acero inoxidable mantiene las bebidas frías", "es"},
		{"empty", "", ""},
		{"whitespace", "   \t  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detector.Detect(tt.text); got != tt.expected {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}
