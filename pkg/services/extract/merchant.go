package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
)

// MerchantExtractor recovers the store name from the receipt header. The
// name is a header convention: only the first few reading-order
// detections are considered, anything date-, phone- or address-shaped is
// excluded, and the survivors are scored.
type MerchantExtractor struct {
	logger          *zap.Logger
	excludePatterns []*regexp.Regexp
	topLines        int
}

// NewMerchantExtractor builds the extractor from configuration. The
// exclusion patterns are evaluated in declared order.
func NewMerchantExtractor(logger *zap.Logger, cfg config.Extraction) *MerchantExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MerchantExtractor{
		logger:          logger,
		excludePatterns: cfg.MerchantExcludePatterns,
		topLines:        cfg.MerchantTopLines,
	}
}

// Extract returns the best merchant-name candidate, or nil when the
// receipt has no usable header text.
func (e *MerchantExtractor) Extract(detections []*models.Detection) *string {
	if len(detections) == 0 {
		return nil
	}

	type candidate struct {
		text       string
		score      float64
		confidence float64
	}

	top := detections
	if len(top) > e.topLines {
		top = top[:e.topLines]
	}

	var candidates []candidate
	for _, d := range top {
		text := strings.TrimSpace(d.Text)
		if len(text) < 2 {
			continue
		}
		if e.shouldExclude(text) {
			continue
		}
		candidates = append(candidates, candidate{
			text:       text,
			score:      scoreMerchantCandidate(text, d),
			confidence: d.Confidence,
		})
	}

	if len(candidates) == 0 {
		// Last resort: some valid store names coincidentally match an
		// exclusion pattern, so take the first non-empty header text.
		limit := 3
		if len(detections) < limit {
			limit = len(detections)
		}
		for _, d := range detections[:limit] {
			if text := strings.TrimSpace(d.Text); text != "" {
				return &text
			}
		}
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].confidence > candidates[j].confidence
	})

	e.logger.Debug("merchant candidate chosen",
		zap.String("text", candidates[0].text),
		zap.Float64("score", candidates[0].score),
	)
	return &candidates[0].text
}

func (e *MerchantExtractor) shouldExclude(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range e.excludePatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

func scoreMerchantCandidate(text string, d *models.Detection) float64 {
	var score float64

	// Store names are commonly printed in all caps.
	if isUpper(text) && len(text) > 3 {
		score += 2
	}
	if len(text) >= 3 && len(text) <= 50 {
		score++
	}
	// Closer to the very top is better, up to three lines down.
	if bonus := 3 - d.LineIndex; bonus > 0 {
		score += float64(bonus)
	}
	if isDigits(text) {
		score -= 5
	}
	if strings.IndexFunc(text, unicode.IsLetter) >= 0 {
		score++
	}
	return score
}

// isUpper reports whether the text contains at least one cased letter and
// no lowercase ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
