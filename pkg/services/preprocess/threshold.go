package preprocess

import (
	"image"
	"math"
)

// AdaptiveThreshold binarizes the image against a Gaussian-weighted local
// mean. Useful for very low contrast receipts; not part of the default
// pipeline.
func (n *Normalizer) AdaptiveThreshold(src *image.Gray, blockSize int, c float64) *image.Gray {
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	radius := blockSize / 2

	// Separable Gaussian kernel sized to the block, sigma per the usual
	// 0.3*((size-1)*0.5 - 1) + 0.8 rule.
	sigma := 0.3*(float64(blockSize-1)*0.5-1) + 0.8
	kernel := make([]float64, blockSize)
	var kSum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		kSum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= kSum
	}

	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	at := func(x, y int) float64 {
		return float64(src.Pix[clampInt(y, 0, h-1)*src.Stride+clampInt(x, 0, w-1)])
	}

	// Horizontal pass.
	horiz := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += kernel[k+radius] * at(x+k, y)
			}
			horiz[y*w+x] = sum
		}
	}

	dst := image.NewGray(src.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for k := -radius; k <= radius; k++ {
				mean += kernel[k+radius] * horiz[clampInt(y+k, 0, h-1)*w+x]
			}
			if at(x, y) > mean-c {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
