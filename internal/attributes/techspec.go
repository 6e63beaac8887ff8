/**
 * Technical spec extractors
 *
 * Camera resolution and storage capacity show up on electronics packaging
 * often enough to deserve their own patterns.
 */

package attributes

import (
	"context"
	"regexp"
	"strings"
)

var pixelResolutionPattern = regexp.MustCompile(`(?i)\b(\d{3,5})\s*x\s*(\d{3,5})\s*(?:pixels|resolution)\b`)

var megapixelPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:mp|megapixels?)\b`)

var storagePattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(gb|tb|mb)\b`)

// ResolutionExtractor finds camera resolution claims.
type ResolutionExtractor struct{}

func NewResolutionExtractor() *ResolutionExtractor { return &ResolutionExtractor{} }

func (e *ResolutionExtractor) Kind() string { return KindResolution }

func (e *ResolutionExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Pixel dimensions take precedence when a label carries both forms
	if match := pixelResolutionPattern.FindStringSubmatch(input.Text); match != nil {
		return []Attribute{{
			Kind:       KindResolution,
			Value:      match[1] + "x" + match[2],
			Unit:       "px",
			Confidence: 0.85,
			Source:     input.Source,
		}}, nil
	}

	match := megapixelPattern.FindStringSubmatch(input.Text)
	if match == nil {
		return nil, nil
	}

	return []Attribute{{
		Kind:       KindResolution,
		Value:      match[1],
		Unit:       "MP",
		Confidence: 0.85,
		Source:     input.Source,
	}}, nil
}

// StorageExtractor finds storage capacity claims.
type StorageExtractor struct{}

func NewStorageExtractor() *StorageExtractor { return &StorageExtractor{} }

func (e *StorageExtractor) Kind() string { return KindStorage }

func (e *StorageExtractor) Extract(ctx context.Context, input Input) ([]Attribute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match := storagePattern.FindStringSubmatch(input.Text)
	if match == nil {
		return nil, nil
	}

	return []Attribute{{
		Kind:       KindStorage,
		Value:      match[1],
		Unit:       strings.ToUpper(match[2]),
		Confidence: 0.85,
		Source:     input.Source,
	}}, nil
}
