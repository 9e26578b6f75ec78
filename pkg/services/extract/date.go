package extract

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
)

// DateExtractor recovers the transaction date. All detection text is
// concatenated into one search string; date tokens are short and rarely
// split across detections, so per-line context adds nothing. Patterns are
// tried in declared order and the first one that yields a calendar-valid,
// plausible date wins.
type DateExtractor struct {
	logger   *zap.Logger
	patterns []config.DatePattern
	months   map[string]time.Month
	// now is swappable for tests.
	now func() time.Time
}

// NewDateExtractor builds the extractor from configuration.
func NewDateExtractor(logger *zap.Logger, cfg config.Extraction) *DateExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DateExtractor{
		logger:   logger,
		patterns: cfg.DatePatterns,
		months:   cfg.Months,
		now:      time.Now,
	}
}

// Extract returns the raw matched substring and the parsed date, or nils
// when no plausible date appears anywhere in the detections.
func (e *DateExtractor) Extract(detections []*models.Detection) (*string, *time.Time) {
	parts := make([]string, len(detections))
	for i, d := range detections {
		parts[i] = d.Text
	}
	fullText := strings.Join(parts, " ")

	for _, pattern := range e.patterns {
		m := pattern.Regexp.FindStringSubmatch(fullText)
		if m == nil {
			continue
		}
		parsed, ok := e.parseMatch(m, pattern)
		if !ok || !e.isPlausible(parsed) {
			// A structurally valid but implausible match is treated as
			// no match for this pattern.
			continue
		}
		raw := m[0]
		e.logger.Debug("transaction date extracted",
			zap.String("raw", raw),
			zap.Time("date", parsed),
		)
		return &raw, &parsed
	}
	return nil, nil
}

func (e *DateExtractor) parseMatch(m []string, pattern config.DatePattern) (time.Time, bool) {
	if len(m) < 4 {
		return time.Time{}, false
	}

	if pattern.TextMonth {
		day, err1 := strconv.Atoi(m[1])
		year, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			return time.Time{}, false
		}
		month, ok := e.months[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		return makeDate(year, month, day)
	}

	first, err1 := strconv.Atoi(m[1])
	second, err2 := strconv.Atoi(m[2])
	third, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	var year, day int
	var month int
	if pattern.YearFirst {
		year, month, day = first, second, third
	} else {
		day, month, year = first, second, third
	}
	if year < 100 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return makeDate(year, time.Month(month), day)
}

// makeDate builds a date and rejects values time.Date would silently
// normalize, e.g. February 31st.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// isPlausible rejects dates in the future and dates more than five years
// old; both are OCR garbage or irrelevant for reimbursement.
func (e *DateExtractor) isPlausible(d time.Time) bool {
	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(today) {
		return false
	}
	oldest := time.Date(today.Year()-5, time.January, 1, 0, 0, 0, 0, time.UTC)
	return !d.Before(oldest)
}
