/**
 * Tests for asset decoding and the normalizer variant set
 */

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
)

// testPhoto renders a small synthetic product shot with a dark label band.
func testPhoto(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{R: 220, G: 220, B: 210, A: 255}
			if y > height/3 && y < height/2 {
				c = color.RGBA{R: 30, G: 30, B: 40, A: 255}
			}
			if x%7 == 0 {
				c = color.RGBA{R: uint8(40 + x%200), G: 80, B: 90, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeAsset(t *testing.T) {
	data := encodePNG(t, testPhoto(120, 80))

	asset, err := DecodeAsset("job-1", data, 0)
	if err != nil {
		t.Fatalf("DecodeAsset failed: %v", err)
	}

	if asset.Format != "png" {
		t.Errorf("Format: got %q, want %q", asset.Format, "png")
	}
	if asset.Width != 120 || asset.Height != 80 {
		t.Errorf("Dimensions: got %dx%d, want 120x80", asset.Width, asset.Height)
	}
	if len(asset.SHA256) != 64 {
		t.Errorf("SHA256 length: got %d, want 64", len(asset.SHA256))
	}

	// Same bytes, same digest
	again, err := DecodeAsset("job-2", data, 0)
	if err != nil {
		t.Fatalf("DecodeAsset failed on second pass: %v", err)
	}
	if again.SHA256 != asset.SHA256 {
		t.Errorf("Digest not deterministic: %s vs %s", asset.SHA256, again.SHA256)
	}
}

func TestDecodeAssetRejectsGarbage(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty input", data: nil},
		{name: "text bytes", data: []byte("definitely not an image")},
		{name: "truncated png header", data: []byte("\x89PNG\r\n")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeAsset("job-1", tc.data, 0)
			if err == nil {
				t.Fatal("Expected decode error, got nil")
			}
			if !errors.IsCode(err, errors.ErrorDecodeFailed) {
				t.Errorf("Expected DECODE_ERROR, got %v", err)
			}
		})
	}
}

func TestDecodeAssetCapsDimension(t *testing.T) {
	data := encodePNG(t, testPhoto(400, 100))

	asset, err := DecodeAsset("job-1", data, 200)
	if err != nil {
		t.Fatalf("DecodeAsset failed: %v", err)
	}

	if asset.Width > 200 || asset.Height > 200 {
		t.Errorf("Dimension cap not applied: got %dx%d", asset.Width, asset.Height)
	}
	// Aspect ratio preserved within rounding
	if asset.Width != 200 {
		t.Errorf("Expected width scaled to 200, got %d", asset.Width)
	}
}

func TestRotateDimensions(t *testing.T) {
	img := testPhoto(60, 40)

	testCases := []struct {
		angle      int
		wantWidth  int
		wantHeight int
	}{
		{angle: 90, wantWidth: 40, wantHeight: 60},
		{angle: 180, wantWidth: 60, wantHeight: 40},
		{angle: 270, wantWidth: 40, wantHeight: 60},
		{angle: 45, wantWidth: 60, wantHeight: 40}, // unsupported, passthrough
	}

	for _, tc := range testCases {
		rotated := Rotate(img, tc.angle)
		bounds := rotated.Bounds()
		if bounds.Dx() != tc.wantWidth || bounds.Dy() != tc.wantHeight {
			t.Errorf("Rotate(%d): got %dx%d, want %dx%d",
				tc.angle, bounds.Dx(), bounds.Dy(), tc.wantWidth, tc.wantHeight)
		}
	}
}

func TestRotateMapsPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 3))
	marker := color.RGBA{R: 255, A: 255}
	img.Set(0, 0, marker)

	// Clockwise quarter turn sends (x, y) to (h-1-y, x)
	rotated := Rotate(img, 90)
	r, _, _, _ := rotated.At(2, 0).RGBA()
	if r>>8 != 255 {
		t.Errorf("Marker pixel not at expected position after 90 degree turn")
	}

	// Full half turn sends (0,0) to (w-1, h-1)
	rotated = Rotate(img, 180)
	r, _, _, _ = rotated.At(1, 2).RGBA()
	if r>>8 != 255 {
		t.Errorf("Marker pixel not at expected position after 180 degree turn")
	}
}

func TestNormalizerVariants(t *testing.T) {
	asset := &Asset{Image: testPhoto(80, 60), Width: 80, Height: 60}
	normalizer := NewNormalizer([]int{90, 270})

	variants := normalizer.Variants(asset)
	if len(variants) != 5 {
		t.Fatalf("Variant count: got %d, want 5", len(variants))
	}

	wantKinds := []TransformKind{TransformIdentity, TransformRotate, TransformRotate, TransformEnhance, TransformDenoise}
	for i, want := range wantKinds {
		if variants[i].Kind != want {
			t.Errorf("Variant %d kind: got %s, want %s", i, variants[i].Kind, want)
		}
	}

	if variants[1].Angle != 90 || variants[2].Angle != 270 {
		t.Errorf("Rotation angles: got %d and %d, want 90 and 270", variants[1].Angle, variants[2].Angle)
	}

	// Normalizer must not touch the source pixels
	if variants[0].Image != asset.Image {
		t.Error("Identity variant should reference the original asset image")
	}
}

func TestNormalizerDefaultsRotations(t *testing.T) {
	normalizer := NewNormalizer(nil)
	angles := normalizer.Rotations()
	if len(angles) != 2 || angles[0] != 90 || angles[1] != 270 {
		t.Errorf("Default rotations: got %v, want [90 270]", angles)
	}
}

func TestEnhanceReliefIsBinary(t *testing.T) {
	enhanced := EnhanceRelief(testPhoto(64, 64))

	bounds := enhanced.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := enhanced.GrayAt(x, y).Y
			if v != 0 && v != 255 {
				t.Fatalf("Non-binary pixel %d at (%d,%d)", v, x, y)
			}
		}
	}
}

func TestOtsuThresholdSeparatesBimodal(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x < 20 {
				gray.SetGray(x, y, color.Gray{Y: 20})
			} else {
				gray.SetGray(x, y, color.Gray{Y: 230})
			}
		}
	}

	threshold := otsuThreshold(gray)
	if threshold < 20 || threshold >= 230 {
		t.Errorf("Otsu threshold %d does not separate the two modes", threshold)
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7\n...")) {
		t.Error("PDF header not recognized")
	}
	if IsPDF(encodePNG(t, testPhoto(10, 10))) {
		t.Error("PNG misidentified as PDF")
	}
	if IsPDF(nil) {
		t.Error("Empty input misidentified as PDF")
	}
}

func TestDuplicateIndex(t *testing.T) {
	index := NewDuplicateIndex(0)
	photo := testPhoto(100, 100)

	if matched, dup := index.Insert("first", photo); dup {
		t.Fatalf("Empty index reported duplicate %q", matched)
	}
	if index.Size() != 1 {
		t.Fatalf("Index size: got %d, want 1", index.Size())
	}

	matched, dup := index.Insert("second", photo)
	if !dup {
		t.Fatal("Identical image not detected as near-duplicate")
	}
	if matched != "first" {
		t.Errorf("Matched id: got %q, want %q", matched, "first")
	}
	if index.Size() != 1 {
		t.Errorf("Duplicate insert must not grow the index: got %d", index.Size())
	}
}
