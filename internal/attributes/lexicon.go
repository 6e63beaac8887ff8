/**
 * Controlled vocabularies
 *
 * The term extractors and the category fallback run off a lexicon. The
 * built-in defaults cover common product vocabulary; deployments with a
 * domain catalog point LEXICON_PATH at a YAML file whose sections replace
 * the matching defaults (sections left out keep the built-ins).
 */

package attributes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the controlled vocabularies the extractors match against.
type Lexicon struct {
	Colors     []string            `yaml:"colors"`
	Materials  []string            `yaml:"materials"`
	Features   []string            `yaml:"features"`
	Brands     []string            `yaml:"brands"`
	Categories map[string][]string `yaml:"categories"`
	Stopwords  []string            `yaml:"stopwords"`
}

// DefaultLexicon returns the built-in vocabularies.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Colors: []string{
			"black", "white", "red", "blue", "green", "yellow", "orange",
			"purple", "pink", "brown", "gray", "grey", "silver", "gold",
			"beige", "navy",
		},
		Materials: []string{
			"plastic", "metal", "steel", "aluminum", "wood", "glass",
			"leather", "cotton", "polyester", "rubber", "ceramic",
			"silicone", "fabric", "bamboo",
		},
		Features: []string{
			"waterproof", "wireless", "rechargeable", "portable",
			"adjustable", "foldable", "washable", "durable", "lightweight",
			"bluetooth", "usb", "led", "organic", "handmade", "reusable",
		},
		Brands: []string{
			"Samsung", "Sony", "Apple", "Nike", "Adidas", "Bosch",
			"Philips", "Panasonic", "Dell", "Lenovo", "Canon", "Nikon",
			"KitchenAid", "DeWalt", "Columbia",
		},
		Categories: map[string][]string{
			"Electronics": {
				"camera", "phone", "laptop", "tablet", "headphones",
				"speaker", "charger", "monitor", "keyboard", "mouse",
				"television", "router",
			},
			"Apparel": {
				"shirt", "jacket", "pants", "dress", "shoes", "boots",
				"hat", "socks", "jeans", "sweater", "coat", "gloves",
			},
			"Home & Kitchen": {
				"lamp", "mug", "pan", "pot", "knife", "plate", "bowl",
				"blender", "kettle", "cushion", "towel", "curtain",
			},
			"Sports & Outdoors": {
				"tent", "backpack", "bicycle", "helmet", "dumbbell",
				"yoga", "kayak", "fishing", "treadmill",
			},
			"Beauty & Personal Care": {
				"shampoo", "lotion", "serum", "razor", "perfume",
				"moisturizer", "toothbrush",
			},
			"Toys & Games": {
				"puzzle", "doll", "blocks", "plush", "figurine",
			},
			"Tools & Hardware": {
				"drill", "hammer", "screwdriver", "wrench", "saw",
				"pliers", "toolbox",
			},
		},
		Stopwords: []string{
			"the", "and", "for", "with", "this", "that", "from", "have",
			"has", "are", "was", "were", "will", "your", "you", "our",
			"its", "their", "them", "they", "when", "what", "which",
			"while", "than", "then", "also", "into", "over", "under",
			"each", "more", "most", "some", "such", "only", "very",
			"made", "make", "makes",
		},
	}
}

// LoadLexicon reads a YAML override file. An empty path returns the
// defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	lexicon := DefaultLexicon()
	if path == "" {
		return lexicon, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	if err := yaml.Unmarshal(data, lexicon); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file: %w", err)
	}

	return lexicon, nil
}

// IsStopword reports whether the word is in the stopword list.
func (l *Lexicon) IsStopword(word string) bool {
	for _, stopword := range l.Stopwords {
		if word == stopword {
			return true
		}
	}
	return false
}
