package models

// Point is a single coordinate in image space, origin top-left, y down.
type Point struct {
	X float64
	Y float64
}

// Quad is a quadrilateral text region as four corners ordered
// top-left, top-right, bottom-right, bottom-left. The zero value is the
// degenerate quad used when the source geometry cannot be understood.
type Quad [4]Point

// RawDetection is a text detection exactly as the external engine reports
// it, before geometry normalization. Bounds carries the engine's position
// encoding, which varies by engine and version: a point list, a flat
// 8-number array, or a 4-number axis-aligned box.
type RawDetection struct {
	Text       string
	Confidence float64
	Bounds     any
}

// Detection is one recognized text fragment with a normalized quadrilateral
// position. LineIndex is assigned during the reading-order sort; everything
// else is immutable once built.
type Detection struct {
	Text       string
	Confidence float64
	Quad       Quad
	LineIndex  int
}

// CenterX returns the mean x coordinate of the quad.
func (d *Detection) CenterX() float64 {
	return (d.Quad[0].X + d.Quad[1].X + d.Quad[2].X + d.Quad[3].X) / 4
}

// CenterY returns the mean y coordinate of the quad.
func (d *Detection) CenterY() float64 {
	return (d.Quad[0].Y + d.Quad[1].Y + d.Quad[2].Y + d.Quad[3].Y) / 4
}

// LeftX returns the leftmost x coordinate of the quad.
func (d *Detection) LeftX() float64 {
	min := d.Quad[0].X
	for _, p := range d.Quad[1:] {
		if p.X < min {
			min = p.X
		}
	}
	return min
}

// RightX returns the rightmost x coordinate of the quad.
func (d *Detection) RightX() float64 {
	max := d.Quad[0].X
	for _, p := range d.Quad[1:] {
		if p.X > max {
			max = p.X
		}
	}
	return max
}

// Line is a reading-order cluster of detections sharing a vertical band,
// sorted left to right. A line is never empty.
type Line []*Detection

// ParsedAmount is the outcome of parsing a currency-looking string.
// Value is nil when the string could not be interpreted as a number; that
// is an expected outcome, not an error.
type ParsedAmount struct {
	Raw   string
	Value *float64
}

// ExtractionResult is the final record produced for one receipt image.
// Nil fields mean the heuristics could not determine a value.
type ExtractionResult struct {
	MerchantName       *string  `json:"merchant_name"`
	TransactionDate    *string  `json:"transaction_date"`
	TransactionDateRaw *string  `json:"transaction_date_raw"`
	TotalAmountRaw     *string  `json:"total_amount_raw"`
	TotalAmountValue   *float64 `json:"total_amount_value"`
	ConfidenceScore    float64  `json:"confidence_score"`
}
