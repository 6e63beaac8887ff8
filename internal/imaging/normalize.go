/**
 * Image Normalizer
 *
 * Produces the canonical set of image variants one extraction run consumes:
 * - identity          (horizontal strategy)
 * - rotate(angle)     (vertical strategy, one variant per configured angle)
 * - relief-enhanced   (embossed strategy)
 * - denoised          (multilingual strategy)
 *
 * Variants are fresh raster buffers; the input asset is never mutated.
 */

package imaging

import "image"

// TransformKind identifies the transform that produced a variant.
type TransformKind string

const (
	TransformIdentity TransformKind = "identity"
	TransformRotate   TransformKind = "rotate"
	TransformEnhance  TransformKind = "enhance"
	TransformDenoise  TransformKind = "denoise"
)

// Variant is one transformed view of an asset, consumed by exactly one
// recognition pass and discarded afterwards.
type Variant struct {
	Kind  TransformKind
	Angle int // degrees clockwise, only set for TransformRotate
	Image image.Image
}

// Normalizer fans one asset out into the per-strategy variants.
type Normalizer struct {
	rotations []int
}

// NewNormalizer creates a normalizer with the given vertical rotation angles.
// An empty list falls back to 90 and 270 degrees.
func NewNormalizer(rotations []int) *Normalizer {
	if len(rotations) == 0 {
		rotations = []int{90, 270}
	}
	return &Normalizer{rotations: rotations}
}

// Variants renders every variant for one asset. The identity variant shares
// the asset's pixels (it is read-only downstream); all others are new buffers.
func (n *Normalizer) Variants(asset *Asset) []Variant {
	variants := make([]Variant, 0, len(n.rotations)+3)

	variants = append(variants, Variant{Kind: TransformIdentity, Image: asset.Image})

	for _, angle := range n.rotations {
		variants = append(variants, Variant{
			Kind:  TransformRotate,
			Angle: angle,
			Image: Rotate(asset.Image, angle),
		})
	}

	variants = append(variants, Variant{Kind: TransformEnhance, Image: EnhanceRelief(asset.Image)})
	variants = append(variants, Variant{Kind: TransformDenoise, Image: Denoise(asset.Image)})

	return variants
}

// Rotations returns the configured vertical rotation angles.
func (n *Normalizer) Rotations() []int {
	return n.rotations
}
