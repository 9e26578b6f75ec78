package extract

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/services/currency"
)

// Per-strategy confidence constants. These reflect how reliable each
// strategy is, not anything computed from the data.
const (
	confKeywordSameLine = 0.90
	confKeywordNextLine = 0.85
	confPosition        = 0.75
	confMaxValue        = 0.60
)

// bottomFraction marks where the bottom section of the receipt starts for
// the position strategy.
const bottomFraction = 0.7

var (
	dateShapedPattern = regexp.MustCompile(`^\d{2}[/\-]\d{2}[/\-]\d{2,4}$`)
	timeShapedPattern = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
	idShapedPattern   = regexp.MustCompile(`^[A-Z]{2,}\d{6,}$`)
)

// TotalExtractor recovers the grand total using three decreasing-confidence
// strategies: keyword lines, position in the bottom of the receipt, and a
// maximum-value sweep.
type TotalExtractor struct {
	logger          *zap.Logger
	parser          *currency.Parser
	totalKeywords   []string
	excludeKeywords []string
	minAmount       float64
}

// NewTotalExtractor builds the extractor from configuration. Keyword
// slices keep their declared order.
func NewTotalExtractor(logger *zap.Logger, cfg config.Extraction, parser *currency.Parser) *TotalExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TotalExtractor{
		logger:          logger,
		parser:          parser,
		totalKeywords:   cfg.TotalKeywords,
		excludeKeywords: cfg.ExcludeKeywords,
		minAmount:       cfg.MinTotalAmount,
	}
}

// Extract returns the raw amount string, the parsed value and the
// strategy confidence, or (nil, nil, 0) when nothing qualifies.
func (e *TotalExtractor) Extract(detections []*models.Detection, lines []models.Line) (*string, *float64, float64) {
	if len(detections) == 0 {
		return nil, nil, 0
	}

	if raw, value, conf := e.extractByKeyword(lines); value != nil {
		e.logger.Debug("total found by keyword", zap.String("raw", *raw), zap.Float64("value", *value))
		return raw, value, conf
	}
	if raw, value, conf := e.extractByPosition(lines); value != nil {
		e.logger.Debug("total found by position", zap.String("raw", *raw), zap.Float64("value", *value))
		return raw, value, conf
	}
	if raw, value, conf := e.extractMaxValue(detections); value != nil {
		e.logger.Debug("total found by max value", zap.String("raw", *raw), zap.Float64("value", *value))
		return raw, value, conf
	}
	return nil, nil, 0
}

// extractByKeyword scans lines bottom to top for a total keyword, then
// scans that line right to left for the first qualifying amount. If the
// keyword line itself carries no amount, the immediately following line is
// checked at reduced confidence.
func (e *TotalExtractor) extractByKeyword(lines []models.Line) (*string, *float64, float64) {
	for i := len(lines) - 1; i >= 0; i-- {
		lineText := lineTextLower(lines[i])
		if containsAny(lineText, e.excludeKeywords) {
			continue
		}

		for _, keyword := range e.totalKeywords {
			if !strings.Contains(lineText, keyword) {
				continue
			}

			// Amounts sit to the right of the keyword.
			line := lines[i]
			for j := len(line) - 1; j >= 0; j-- {
				parsed := e.parser.Parse(line[j].Text)
				if parsed.Value != nil && *parsed.Value > 0 && *parsed.Value >= e.minAmount {
					return &parsed.Raw, parsed.Value, confKeywordSameLine
				}
			}

			if i+1 < len(lines) {
				for _, d := range lines[i+1] {
					parsed := e.parser.Parse(d.Text)
					if parsed.Value != nil && *parsed.Value >= e.minAmount {
						return &parsed.Raw, parsed.Value, confKeywordNextLine
					}
				}
			}
		}
	}
	return nil, nil, 0
}

// extractByPosition takes the largest qualifying amount from the bottom
// 30% of the receipt's lines.
func (e *TotalExtractor) extractByPosition(lines []models.Line) (*string, *float64, float64) {
	if len(lines) == 0 {
		return nil, nil, 0
	}

	bottomStart := int(float64(len(lines)) * bottomFraction)
	var amounts []models.ParsedAmount
	for _, line := range lines[bottomStart:] {
		if containsAny(lineTextLower(line), e.excludeKeywords) {
			continue
		}
		for _, d := range line {
			parsed := e.parser.Parse(d.Text)
			if parsed.Value != nil && *parsed.Value >= e.minAmount {
				amounts = append(amounts, parsed)
			}
		}
	}
	if best := largest(amounts); best != nil {
		return &best.Raw, best.Value, confPosition
	}
	return nil, nil, 0
}

// extractMaxValue sweeps every detection for the largest amount that does
// not look like a date, a time or a transaction ID.
func (e *TotalExtractor) extractMaxValue(detections []*models.Detection) (*string, *float64, float64) {
	var amounts []models.ParsedAmount
	for _, d := range detections {
		parsed := e.parser.Parse(d.Text)
		if parsed.Value == nil || *parsed.Value < e.minAmount {
			continue
		}
		if looksLikeDateOrID(d.Text) {
			continue
		}
		amounts = append(amounts, parsed)
	}
	if best := largest(amounts); best != nil {
		return &best.Raw, best.Value, confMaxValue
	}
	return nil, nil, 0
}

func looksLikeDateOrID(text string) bool {
	return dateShapedPattern.MatchString(text) ||
		timeShapedPattern.MatchString(text) ||
		idShapedPattern.MatchString(text)
}

func largest(amounts []models.ParsedAmount) *models.ParsedAmount {
	if len(amounts) == 0 {
		return nil
	}
	sort.SliceStable(amounts, func(i, j int) bool {
		return *amounts[i].Value > *amounts[j].Value
	})
	return &amounts[0]
}

func lineTextLower(line models.Line) string {
	parts := make([]string, len(line))
	for i, d := range line {
		parts[i] = d.Text
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
