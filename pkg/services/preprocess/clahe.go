package preprocess

import (
	"image"
	"math"
)

// clahe performs contrast-limited adaptive histogram equalization: the
// image is divided into a grid of tiles, each tile gets its own clipped
// equalization lookup, and pixels interpolate bilinearly between the four
// surrounding tile lookups. The clip limit keeps flat regions from having
// their noise amplified.
func clahe(src *image.Gray, clipLimit float64, gridSize int) *image.Gray {
	if gridSize <= 0 {
		return src
	}
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	tileW := (w + gridSize - 1) / gridSize
	tileH := (h + gridSize - 1) / gridSize
	if tileW == 0 || tileH == 0 {
		return src
	}

	luts := buildTileLUTs(src, w, h, tileW, tileH, gridSize, clipLimit)

	dst := image.NewGray(src.Bounds())
	for y := 0; y < h; y++ {
		// Position relative to tile centers, in tile units.
		ty := (float64(y)-float64(tileH)/2 + 0.5) / float64(tileH)
		ty0 := int(math.Floor(ty))
		fy := ty - float64(ty0)
		for x := 0; x < w; x++ {
			tx := (float64(x)-float64(tileW)/2 + 0.5) / float64(tileW)
			tx0 := int(math.Floor(tx))
			fx := tx - float64(tx0)

			v := src.Pix[y*src.Stride+x]
			lut := func(tx, ty int) float64 {
				tx = clampInt(tx, 0, gridSize-1)
				ty = clampInt(ty, 0, gridSize-1)
				return float64(luts[ty*gridSize+tx][v])
			}
			top := lut(tx0, ty0)*(1-fx) + lut(tx0+1, ty0)*fx
			bottom := lut(tx0, ty0+1)*(1-fx) + lut(tx0+1, ty0+1)*fx
			dst.Pix[y*dst.Stride+x] = uint8(math.Round(top*(1-fy) + bottom*fy))
		}
	}
	return dst
}

// buildTileLUTs computes one clipped equalization lookup per grid tile.
func buildTileLUTs(src *image.Gray, w, h, tileW, tileH, gridSize int, clipLimit float64) [][256]uint8 {
	luts := make([][256]uint8, gridSize*gridSize)

	for ty := 0; ty < gridSize; ty++ {
		for tx := 0; tx < gridSize; tx++ {
			x0 := tx * tileW
			y0 := ty * tileH
			x1 := minInt(x0+tileW, w)
			y1 := minInt(y0+tileH, h)
			if x0 >= x1 || y0 >= y1 {
				// Degenerate tile on tiny images: identity lookup.
				for i := 0; i < 256; i++ {
					luts[ty*gridSize+tx][i] = uint8(i)
				}
				continue
			}

			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[src.Pix[y*src.Stride+x]]++
				}
			}

			pixels := (x1 - x0) * (y1 - y0)
			clip := int(clipLimit * float64(pixels) / 256)
			if clip < 1 {
				clip = 1
			}

			// Clip the histogram and spread the excess evenly.
			excess := 0
			for i := 0; i < 256; i++ {
				if hist[i] > clip {
					excess += hist[i] - clip
					hist[i] = clip
				}
			}
			share := excess / 256
			remainder := excess % 256
			for i := 0; i < 256; i++ {
				hist[i] += share
				if i < remainder {
					hist[i]++
				}
			}

			cum := 0
			for i := 0; i < 256; i++ {
				cum += hist[i]
				luts[ty*gridSize+tx][i] = uint8(math.Round(255 * float64(cum) / float64(pixels)))
			}
		}
	}
	return luts
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
