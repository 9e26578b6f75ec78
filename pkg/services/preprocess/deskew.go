package preprocess

import (
	"image"
	"math"
	"sort"

	"go.uber.org/zap"
)

const (
	// Gradient magnitude threshold for edge pixels.
	edgeThreshold = 150

	// Line transform parameters: a candidate line needs this many edge
	// votes; segments shorter than minSegmentLength or broken by gaps
	// wider than maxSegmentGap are discarded.
	houghVotes       = 100
	minSegmentLength = 100.0
	maxSegmentGap    = 10.0

	// Segments steeper than this are structural (table rules, receipt
	// edges held vertically) and say nothing about text skew.
	maxTextAngle = 45.0

	// Rotations below this amplify detector noise instead of fixing
	// anything.
	minSkewDegrees = 0.5
)

// detectSkewAngle estimates how far the text rows deviate from horizontal.
// It reports false when no line segments are found or the median angle is
// below the correction deadband.
func (n *Normalizer) detectSkewAngle(gray *image.Gray) (float64, bool) {
	edges := edgePoints(gray)
	if len(edges) == 0 {
		return 0, false
	}

	angles := segmentAngles(edges, gray.Bounds().Dx(), gray.Bounds().Dy())
	if len(angles) == 0 {
		n.logger.Debug("no line segments found, skipping deskew")
		return 0, false
	}

	med := median(angles)
	if math.Abs(med) < minSkewDegrees {
		n.logger.Debug("skew below deadband", zap.Float64("degrees", med))
		return 0, false
	}
	return med, true
}

// edgePoints runs a Sobel gradient over the image and returns the pixels
// whose magnitude crosses the edge threshold.
func edgePoints(gray *image.Gray) []image.Point {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	var points []image.Point
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			p := func(dx, dy int) int {
				return int(gray.Pix[(y+dy)*gray.Stride+(x+dx)])
			}
			gx := -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
			gy := -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
			if abs(gx)+abs(gy) >= edgeThreshold*2 {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}

// segmentAngles finds straight line segments among the edge points and
// returns the angles (degrees from horizontal) of those within the text
// angle window. The transform votes every edge point into a
// (theta, rho) accumulator, then walks the supporting points of each
// peak to verify real segments of sufficient length.
func segmentAngles(edges []image.Point, w, h int) []float64 {
	const nTheta = 180
	rhoMax := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	nRho := 2*rhoMax + 1

	sinT := make([]float64, nTheta)
	cosT := make([]float64, nTheta)
	for t := 0; t < nTheta; t++ {
		rad := (float64(t) - 90) * math.Pi / 180
		sinT[t] = math.Sin(rad)
		cosT[t] = math.Cos(rad)
	}

	acc := make([]int32, nTheta*nRho)
	for _, p := range edges {
		for t := 0; t < nTheta; t++ {
			rho := int(math.Round(float64(p.X)*cosT[t]+float64(p.Y)*sinT[t])) + rhoMax
			acc[t*nRho+rho]++
		}
	}

	var angles []float64
	for t := 0; t < nTheta; t++ {
		for r := 0; r < nRho; r++ {
			votes := acc[t*nRho+r]
			if votes < houghVotes || !isLocalPeak(acc, nTheta, nRho, t, r) {
				continue
			}
			// Theta indexes the line normal at t-90 degrees; the travel
			// direction sits 90 degrees further, normalized to (-90, 90].
			dirDeg := float64(t)
			if dirDeg > 90 {
				dirDeg -= 180
			}
			if dirDeg <= -maxTextAngle || dirDeg >= maxTextAngle {
				continue
			}
			if hasLongSegment(edges, cosT[t], sinT[t], float64(r-rhoMax)) {
				angles = append(angles, dirDeg)
			}
		}
	}
	return angles
}

func isLocalPeak(acc []int32, nTheta, nRho, t, r int) bool {
	votes := acc[t*nRho+r]
	for dt := -1; dt <= 1; dt++ {
		for dr := -1; dr <= 1; dr++ {
			tt, rr := t+dt, r+dr
			if tt < 0 || tt >= nTheta || rr < 0 || rr >= nRho {
				continue
			}
			neighbor := acc[tt*nRho+rr]
			if neighbor > votes {
				return false
			}
			// Break plateau ties toward the lower index.
			if neighbor == votes && (tt*nRho+rr) < (t*nRho+r) {
				return false
			}
		}
	}
	return true
}

// hasLongSegment projects the edge points supporting a line onto the line
// direction and checks for a contiguous run that is long enough, allowing
// gaps up to maxSegmentGap.
func hasLongSegment(edges []image.Point, cosT, sinT, rho float64) bool {
	var ts []float64
	for _, p := range edges {
		x, y := float64(p.X), float64(p.Y)
		if math.Abs(x*cosT+y*sinT-rho) <= 1 {
			ts = append(ts, -x*sinT+y*cosT)
		}
	}
	if len(ts) == 0 {
		return false
	}
	sort.Float64s(ts)

	start := ts[0]
	prev := ts[0]
	for _, t := range ts[1:] {
		if t-prev > maxSegmentGap {
			if prev-start >= minSegmentLength {
				return true
			}
			start = t
		}
		prev = t
	}
	return prev-start >= minSegmentLength
}

// rotateGray rotates the image by the given angle in degrees about its
// center. The output canvas is expanded so corners are not clipped, and
// samples outside the source are clamped to the nearest edge pixel,
// replicating borders.
func rotateGray(src *image.Gray, angleDeg float64) *image.Gray {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sincos(rad)

	newW := int(math.Ceil(math.Abs(float64(w)*cos) + math.Abs(float64(h)*sin)))
	newH := int(math.Ceil(math.Abs(float64(w)*sin) + math.Abs(float64(h)*cos)))
	dst := image.NewGray(image.Rect(0, 0, newW, newH))

	cxIn, cyIn := float64(w)/2, float64(h)/2
	cxOut, cyOut := float64(newW)/2, float64(newH)/2

	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			// Inverse mapping: rotate the output coordinate back into
			// source space.
			dx := float64(x) + 0.5 - cxOut
			dy := float64(y) + 0.5 - cyOut
			sx := dx*cos + dy*sin + cxIn - 0.5
			sy := -dx*sin + dy*cos + cyIn - 0.5
			dst.Pix[y*dst.Stride+x] = bilinearClamped(src, sx, sy)
		}
	}
	return dst
}

// bilinearClamped samples the source with bilinear interpolation, clamping
// coordinates to the image so out-of-range reads replicate the border.
func bilinearClamped(src *image.Gray, x, y float64) uint8 {
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	sample := func(xi, yi int) float64 {
		xi = clampInt(xi, 0, w-1)
		yi = clampInt(yi, 0, h-1)
		return float64(src.Pix[yi*src.Stride+xi])
	}

	top := sample(x0, y0)*(1-fx) + sample(x0+1, y0)*fx
	bottom := sample(x0, y0+1)*(1-fx) + sample(x0+1, y0+1)*fx
	return uint8(math.Round(top*(1-fy) + bottom*fy))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
