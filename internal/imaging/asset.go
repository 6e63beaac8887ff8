/**
 * Image assets for the PhotoScan Worker
 *
 * Decodes uploaded product photos into immutable raster assets. The decoder
 * accepts JPEG, PNG, GIF, BMP, TIFF and WebP; oversized photos are scaled
 * down to a bounded maximum dimension before the normalizer fans them out
 * into per-strategy variants.
 */

package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
)

// Asset is one decoded product photo. Immutable for the duration of a run.
type Asset struct {
	Image  image.Image
	Width  int
	Height int
	Format string
	SHA256 string
}

// DecodeAsset decodes raw image bytes into an Asset. The SHA-256 digest is
// computed over the original bytes so re-submissions of the same file dedup
// regardless of decode parameters. Returns a DECODE_ERROR when the bytes are
// not a decodable raster, which aborts the whole run.
func DecodeAsset(jobID string, data []byte, maxDimension int) (*Asset, error) {
	if len(data) == 0 {
		return nil, errors.NewDecodeError(jobID, "empty", fmt.Errorf("no image bytes supplied"))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewDecodeError(jobID, sniffFormat(data), err)
	}

	sum := sha256.Sum256(data)

	if maxDimension > 0 {
		img = capDimension(img, maxDimension)
	}

	bounds := img.Bounds()
	return &Asset{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// AssetFromImage wraps an already-rendered raster (a PDF page, a matted
// photo) in an Asset. The digest is computed over the original upload bytes
// so the dedup identity stays stable across render settings.
func AssetFromImage(img image.Image, format string, originalBytes []byte, maxDimension int) *Asset {
	sum := sha256.Sum256(originalBytes)
	if maxDimension > 0 {
		img = capDimension(img, maxDimension)
	}
	bounds := img.Bounds()
	return &Asset{
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: format,
		SHA256: hex.EncodeToString(sum[:]),
	}
}

// capDimension scales img down so neither side exceeds max. Smaller images
// pass through untouched.
func capDimension(img image.Image, max int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= max && bounds.Dy() <= max {
		return img
	}
	return resize.Thumbnail(uint(max), uint(max), img, resize.Lanczos3)
}

// sniffFormat guesses the claimed format from magic bytes for error details.
func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "jpeg"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case len(data) >= 2 && bytes.HasPrefix(data, []byte("BM")):
		return "bmp"
	case len(data) >= 4 && (bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*"))):
		return "tiff"
	case len(data) >= 12 && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	case IsPDF(data):
		return "pdf"
	default:
		return "unknown"
	}
}
