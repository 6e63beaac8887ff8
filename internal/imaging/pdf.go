/**
 * PDF product-sheet rendering
 *
 * Vendors frequently upload spec sheets as single-page PDFs instead of
 * photos. Pages are rasterized through MuPDF (go-fitz) and fed into the
 * normalizer like any other asset.
 */

package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// DefaultRenderDPI balances recognition quality against raster size.
const DefaultRenderDPI = 150

// IsPDF reports whether data starts with the PDF magic header.
func IsPDF(data []byte) bool {
	return len(data) >= 5 && bytes.HasPrefix(data, []byte("%PDF-"))
}

// RenderPDFPage rasterizes a single zero-indexed page.
func RenderPDFPage(data []byte, page int, dpi int) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", page, doc.NumPage())
	}

	if dpi <= 0 {
		dpi = DefaultRenderDPI
	}

	img, err := doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF page %d: %w", page, err)
	}

	return img, nil
}

// RenderPDFPages rasterizes every page of the document.
func RenderPDFPages(data []byte, dpi int) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if dpi <= 0 {
		dpi = DefaultRenderDPI
	}

	pages := make([]image.Image, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("failed to render PDF page %d: %w", i, err)
		}
		pages = append(pages, img)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("PDF contains no pages")
	}

	return pages, nil
}
