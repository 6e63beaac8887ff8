/**
 * Language detection for the multilingual strategy
 *
 * Wraps a lingua detector built once at startup. Detection runs over the
 * joined text of a multilingual pass; per-span detection on three-word label
 * fragments is too noisy to be useful.
 */

package recognition

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector annotates recognized text with its dominant language.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector builds a detector over the given candidate languages.
// An empty list falls back to the default English/Spanish/French/German set
// matching the default multilingual recognition hints.
func NewLanguageDetector(languages []lingua.Language) *LanguageDetector {
	if len(languages) == 0 {
		languages = []lingua.Language{
			lingua.English,
			lingua.Spanish,
			lingua.French,
			lingua.German,
		}
	}

	return &LanguageDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// LanguagesFromHints maps tesseract-style language hints to lingua
// candidates. Hints without a lingua counterpart are skipped, so a detector
// built from the result covers at most the languages recognition itself can
// produce.
func LanguagesFromHints(hints []string) []lingua.Language {
	languages := make([]lingua.Language, 0, len(hints))
	for _, hint := range hints {
		switch strings.ToLower(strings.TrimSpace(hint)) {
		case "eng":
			languages = append(languages, lingua.English)
		case "spa":
			languages = append(languages, lingua.Spanish)
		case "fra":
			languages = append(languages, lingua.French)
		case "deu":
			languages = append(languages, lingua.German)
		case "ita":
			languages = append(languages, lingua.Italian)
		case "por":
			languages = append(languages, lingua.Portuguese)
		case "nld":
			languages = append(languages, lingua.Dutch)
		}
	}
	return languages
}

// Detect returns the lowercase ISO 639-1 code of the dominant language of
// text, or "" when no candidate is confidently detected.
func (d *LanguageDetector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	language, exists := d.detector.DetectLanguageOf(text)
	if !exists {
		return ""
	}

	return strings.ToLower(language.IsoCode639_1().String())
}
