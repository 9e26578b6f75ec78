package preprocess

import (
	"image"
	"math"
)

// Non-local means window sizes, fixed for the dot-matrix and thermal
// print noise receipts carry: 7x7 comparison patches searched over a
// 21x21 neighborhood.
const (
	patchRadius  = 3
	searchRadius = 10
)

// denoiseNLMeans denoises the image by averaging pixels with similar
// surrounding patches. Strength controls how dissimilar a patch may be
// and still contribute.
//
// One pass runs per search offset: squared differences against the
// shifted image are accumulated into an integral image, which turns
// every patch distance into four reads. That keeps the cost linear in
// the search area instead of search area times patch area, which is the
// difference between seconds and minutes at the resize cap.
func denoiseNLMeans(src *image.Gray, strength float64) *image.Gray {
	if strength <= 0 {
		return src
	}
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	// Replicate borders once so every sample below is a plain array read.
	const pad = searchRadius + patchRadius
	pw := w + 2*pad
	ph := h + 2*pad
	padded := make([]float64, pw*ph)
	for y := 0; y < ph; y++ {
		sy := clampInt(y-pad, 0, h-1)
		for x := 0; x < pw; x++ {
			sx := clampInt(x-pad, 0, w-1)
			padded[y*pw+x] = float64(src.Pix[sy*src.Stride+sx])
		}
	}

	patchArea := float64((2*patchRadius + 1) * (2*patchRadius + 1))
	norm := strength * strength * patchArea

	weightSum := make([]float64, w*h)
	valueSum := make([]float64, w*h)

	// The difference image only needs the band the patch boxes can touch:
	// padded coordinates offset by searchRadius, sized so every shifted
	// read stays inside the padding.
	dw := w + 2*patchRadius
	dh := h + 2*patchRadius
	iw := dw + 1
	integral := make([]float64, iw*(dh+1))

	for dy := -searchRadius; dy <= searchRadius; dy++ {
		for dx := -searchRadius; dx <= searchRadius; dx++ {
			for v := 0; v < dh; v++ {
				py := v + searchRadius
				rowSum := 0.0
				for u := 0; u < dw; u++ {
					px := u + searchRadius
					d := padded[py*pw+px] - padded[(py+dy)*pw+(px+dx)]
					rowSum += d * d
					integral[(v+1)*iw+(u+1)] = rowSum + integral[v*iw+(u+1)]
				}
			}

			side := 2*patchRadius + 1
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					dist2 := integral[(y+side)*iw+(x+side)] -
						integral[y*iw+(x+side)] -
						integral[(y+side)*iw+x] +
						integral[y*iw+x]
					if dist2 < 0 {
						dist2 = 0
					}
					weight := math.Exp(-dist2 / norm)
					weightSum[y*w+x] += weight
					valueSum[y*w+x] += weight * padded[(y+pad+dy)*pw+(x+pad+dx)]
				}
			}
		}
	}

	dst := image.NewGray(src.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(valueSum[y*w+x] / weightSum[y*w+x]))
		}
	}
	return dst
}
