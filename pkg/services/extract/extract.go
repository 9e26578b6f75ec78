// Package extract recovers merchant name, transaction date and total
// amount from line-structured OCR detections. Every extractor is a pure
// heuristic over its input: a field it cannot determine resolves to an
// absent value, never an error.
package extract

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/currency"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/layout"
)

// Weights blending mean detection confidence with the total extractor's
// strategy confidence into the overall score.
const (
	ocrConfidenceWeight   = 0.3
	totalConfidenceWeight = 0.7
)

// Extractor runs the three field extractors and blends their confidence
// into a single record. The extractors do not interact.
type Extractor struct {
	logger   *zap.Logger
	merchant *MerchantExtractor
	date     *DateExtractor
	total    *TotalExtractor
}

// NewExtractor wires the field extractors from configuration.
func NewExtractor(logger *zap.Logger, cfg config.Extraction, parser *currency.Parser) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		logger:   logger,
		merchant: NewMerchantExtractor(logger, cfg),
		date:     NewDateExtractor(logger, cfg),
		total:    NewTotalExtractor(logger, cfg, parser),
	}
}

// ExtractAll produces the final extraction record. A fault inside one
// field extractor degrades to a soft miss for that field only; the other
// fields are still returned. Zero detections yield an all-absent record
// with confidence 0.
func (e *Extractor) ExtractAll(detections []*models.Detection, lines []models.Line) models.ExtractionResult {
	var result models.ExtractionResult

	e.guard("merchant", func() {
		result.MerchantName = e.merchant.Extract(detections)
	})

	e.guard("date", func() {
		raw, parsed := e.date.Extract(detections)
		result.TransactionDateRaw = raw
		if parsed != nil {
			iso := parsed.Format(time.DateOnly)
			result.TransactionDate = &iso
		}
	})

	var totalConfidence float64
	e.guard("total", func() {
		raw, value, conf := e.total.Extract(detections, lines)
		result.TotalAmountRaw = raw
		result.TotalAmountValue = value
		totalConfidence = conf
	})

	overall := layout.AverageConfidence(detections)*ocrConfidenceWeight + totalConfidence*totalConfidenceWeight
	result.ConfidenceScore = math.Round(overall*1000) / 1000
	return result
}

// guard converts an unexpected fault in a field extractor into a soft
// miss for that field.
func (e *Extractor) guard(field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("field extraction failed", zap.String("field", field), zap.Any("panic", r))
		}
	}()
	fn()
}
