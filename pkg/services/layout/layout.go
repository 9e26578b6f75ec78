// Package layout rebuilds reading order from the scattered text boxes an
// OCR engine returns. Detections are normalized to a canonical
// quadrilateral, sorted top to bottom, then clustered into horizontal
// lines by a greedy single pass.
package layout

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
)

// Reconstructor turns raw engine detections into ordered, line-clustered
// detections.
type Reconstructor struct {
	logger *zap.Logger
	// lineThreshold is the maximum vertical distance in pixels between a
	// detection center and the current line anchor for the detection to
	// join that line.
	lineThreshold float64
}

// NewReconstructor creates a Reconstructor with the given clustering
// threshold.
func NewReconstructor(logger *zap.Logger, lineThreshold float64) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{logger: logger, lineThreshold: lineThreshold}
}

// NormalizeBbox coerces any of the position encodings engines emit into a
// quad. Point lists, flat 8-number arrays, 4-number axis-aligned boxes and
// their loosely typed variants are all accepted; anything else degrades to
// the zero quad with a logged warning rather than failing.
func (r *Reconstructor) NormalizeBbox(raw any) models.Quad {
	switch v := raw.(type) {
	case models.Quad:
		return v
	case [4]models.Point:
		return models.Quad(v)
	case []models.Point:
		if len(v) >= 4 {
			return models.Quad{v[0], v[1], v[2], v[3]}
		}
	case [][]float64:
		if q, ok := quadFromPointRows(v); ok {
			return q
		}
	case []float64:
		if q, ok := quadFromFlat(v); ok {
			return q
		}
	case []int:
		coords := make([]float64, len(v))
		for i, n := range v {
			coords[i] = float64(n)
		}
		if q, ok := quadFromFlat(coords); ok {
			return q
		}
	case []any:
		if q, ok := quadFromLoose(v); ok {
			return q
		}
	}
	r.logger.Warn("unrecognized bbox encoding, using zero quad", zap.Any("bbox", raw))
	return models.Quad{}
}

func quadFromPointRows(rows [][]float64) (models.Quad, bool) {
	if len(rows) < 4 {
		return models.Quad{}, false
	}
	var q models.Quad
	for i := 0; i < 4; i++ {
		if len(rows[i]) < 2 {
			return models.Quad{}, false
		}
		q[i] = models.Point{X: rows[i][0], Y: rows[i][1]}
	}
	return q, true
}

func quadFromFlat(coords []float64) (models.Quad, bool) {
	if len(coords) >= 8 {
		return models.Quad{
			{X: coords[0], Y: coords[1]},
			{X: coords[2], Y: coords[3]},
			{X: coords[4], Y: coords[5]},
			{X: coords[6], Y: coords[7]},
		}, true
	}
	if len(coords) == 4 {
		x1, y1, x2, y2 := coords[0], coords[1], coords[2], coords[3]
		return models.Quad{
			{X: x1, Y: y1},
			{X: x2, Y: y1},
			{X: x2, Y: y2},
			{X: x1, Y: y2},
		}, true
	}
	return models.Quad{}, false
}

// quadFromLoose handles []any payloads, typically decoded JSON: either a
// list of [x, y] pairs or a flat list of numbers.
func quadFromLoose(items []any) (models.Quad, bool) {
	// Point-list shape first.
	if len(items) >= 4 {
		rows := make([][]float64, 0, 4)
		for _, item := range items[:4] {
			pair, ok := item.([]any)
			if !ok || len(pair) < 2 {
				rows = nil
				break
			}
			x, okX := toFloat(pair[0])
			y, okY := toFloat(pair[1])
			if !okX || !okY {
				rows = nil
				break
			}
			rows = append(rows, []float64{x, y})
		}
		if rows != nil {
			return quadFromPointRows(rows)
		}
	}

	// Otherwise a flat list of numbers.
	coords := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return models.Quad{}, false
		}
		coords = append(coords, f)
	}
	return quadFromFlat(coords)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// BuildDetections converts raw engine output into detections with
// normalized geometry, preserving input order.
func (r *Reconstructor) BuildDetections(raws []models.RawDetection) []*models.Detection {
	detections := make([]*models.Detection, 0, len(raws))
	for _, raw := range raws {
		detections = append(detections, &models.Detection{
			Text:       strings.TrimSpace(raw.Text),
			Confidence: raw.Confidence,
			Quad:       r.NormalizeBbox(raw.Bounds),
		})
	}
	return detections
}

// OrderByReadingPosition sorts detections top to bottom by center y and
// assigns sequential line indices. The sort is stable so detections with
// equal centers keep their engine order.
func (r *Reconstructor) OrderByReadingPosition(detections []*models.Detection) []*models.Detection {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].CenterY() < detections[j].CenterY()
	})
	for i, d := range detections {
		d.LineIndex = i
	}
	return detections
}

// GroupIntoLines clusters vertically ordered detections into horizontal
// lines. It is a greedy single pass: a detection joins the current line
// when its center y is within the threshold of the line's anchor,
// otherwise the line is closed and a new one is anchored at the
// detection. Each closed line is sorted left to right; the final open
// line is always flushed.
func (r *Reconstructor) GroupIntoLines(detections []*models.Detection) []models.Line {
	if len(detections) == 0 {
		return nil
	}

	var lines []models.Line
	current := models.Line{detections[0]}
	anchorY := detections[0].CenterY()

	for _, d := range detections[1:] {
		if absFloat(d.CenterY()-anchorY) <= r.lineThreshold {
			current = append(current, d)
			continue
		}
		sortByLeftX(current)
		lines = append(lines, current)
		current = models.Line{d}
		anchorY = d.CenterY()
	}
	sortByLeftX(current)
	return append(lines, current)
}

// FullText renders detections as reading-order text, one reconstructed
// line per row.
func (r *Reconstructor) FullText(detections []*models.Detection) string {
	var rows []string
	for _, line := range r.GroupIntoLines(detections) {
		parts := make([]string, len(line))
		for i, d := range line {
			parts[i] = d.Text
		}
		rows = append(rows, strings.Join(parts, " "))
	}
	return strings.Join(rows, "\n")
}

// AverageConfidence is the mean detection confidence, zero when there are
// no detections.
func AverageConfidence(detections []*models.Detection) float64 {
	if len(detections) == 0 {
		return 0
	}
	var sum float64
	for _, d := range detections {
		sum += d.Confidence
	}
	return sum / float64(len(detections))
}

func sortByLeftX(line models.Line) {
	sort.SliceStable(line, func(i, j int) bool {
		return line[i].LeftX() < line[j].LeftX()
	})
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
