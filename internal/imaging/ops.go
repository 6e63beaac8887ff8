/**
 * Raster operations backing the normalizer
 *
 * Pure-Go grayscale conversion, box-blur denoising, Otsu thresholding and
 * min/max morphology. The relief enhancement chain (grayscale -> blur ->
 * tophat/blackhat merge -> Otsu threshold -> dilate) emphasizes the edges of
 * raised or stamped lettering so the embossed recognition pass has actual
 * contrast to work with.
 */

package imaging

import (
	"image"
	"image/color"
)

// Rotate returns img rotated clockwise by angle degrees. Only quarter turns
// are supported; any other angle returns the input unchanged.
func Rotate(img image.Image, angle int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch angle {
	case 90:
		dst := image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(h-1-y, x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return dst
	case 180:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, h-1-y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return dst
	case 270:
		dst := image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(y, w-1-x, img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
		return dst
	default:
		return img
	}
}

// Denoise returns a grayscale copy smoothed with a small box blur. This is
// the light-touch cleanup pass used for the multilingual variant.
func Denoise(img image.Image) *image.Gray {
	return boxBlur(toGrayscale(img), 1)
}

// EnhanceRelief runs the embossed enhancement chain and returns a binary
// image (0 or 255) with relief edges emphasized.
func EnhanceRelief(img image.Image) *image.Gray {
	gray := boxBlur(toGrayscale(img), 1)

	// Tophat picks up bright ridges, blackhat picks up dark grooves. Adding
	// one and subtracting the other boosts both sides of stamped lettering.
	opened := dilateGray(erodeGray(gray, 3, 1), 3, 1)
	closed := erodeGray(dilateGray(gray, 3, 1), 3, 1)

	bounds := gray.Bounds()
	enhanced := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := int(gray.GrayAt(x, y).Y)
			tophat := g - int(opened.GrayAt(x, y).Y)
			blackhat := int(closed.GrayAt(x, y).Y) - g
			enhanced.SetGray(x, y, color.Gray{Y: clampByte(g + tophat - blackhat)})
		}
	}

	binary := applyThreshold(enhanced, otsuThreshold(enhanced))
	return dilateGray(binary, 3, 1)
}

// toGrayscale converts an image to grayscale
func toGrayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}

// boxBlur smooths gray with a (2*radius+1)^2 mean filter
func boxBlur(gray *image.Gray, radius int) *image.Gray {
	if radius < 1 {
		return gray
	}

	bounds := gray.Bounds()
	out := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum, count := 0, 0
			for ky := -radius; ky <= radius; ky++ {
				for kx := -radius; kx <= radius; kx++ {
					px, py := x+kx, y+ky
					if px < bounds.Min.X || px >= bounds.Max.X || py < bounds.Min.Y || py >= bounds.Max.Y {
						continue
					}
					sum += int(gray.GrayAt(px, py).Y)
					count++
				}
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum / count)})
		}
	}

	return out
}

// dilateGray performs morphological dilation (max filter)
func dilateGray(img *image.Gray, kernelSize, iterations int) *image.Gray {
	return morph(img, kernelSize, iterations, func(a, b uint8) bool { return a > b })
}

// erodeGray performs morphological erosion (min filter)
func erodeGray(img *image.Gray, kernelSize, iterations int) *image.Gray {
	return morph(img, kernelSize, iterations, func(a, b uint8) bool { return a < b })
}

func morph(img *image.Gray, kernelSize, iterations int, better func(a, b uint8) bool) *image.Gray {
	bounds := img.Bounds()
	result := image.NewGray(bounds)
	copy(result.Pix, img.Pix)

	half := kernelSize / 2

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(bounds)

		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				best := result.GrayAt(x, y).Y

				for ky := -half; ky <= half; ky++ {
					for kx := -half; kx <= half; kx++ {
						px, py := x+kx, y+ky
						if px < bounds.Min.X || px >= bounds.Max.X || py < bounds.Min.Y || py >= bounds.Max.Y {
							continue
						}
						val := result.GrayAt(px, py).Y
						if better(val, best) {
							best = val
						}
					}
				}

				temp.SetGray(x, y, color.Gray{Y: best})
			}
		}

		result = temp
	}

	return result
}

// otsuThreshold picks the threshold that minimizes intra-class variance over
// the image histogram.
func otsuThreshold(gray *image.Gray) uint8 {
	var histogram [256]int
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 128
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			histogram[gray.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for level, count := range histogram {
		sum += float64(level) * float64(count)
	}

	var sumBack, weightBack float64
	bestThreshold, bestVariance := uint8(128), 0.0

	for level := 0; level < 256; level++ {
		weightBack += float64(histogram[level])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}

		sumBack += float64(level) * float64(histogram[level])
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore

		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > bestVariance {
			bestVariance = variance
			bestThreshold = uint8(level)
		}
	}

	return bestThreshold
}

// applyThreshold maps gray to a binary 0/255 image
func applyThreshold(gray *image.Gray, threshold uint8) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return out
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
