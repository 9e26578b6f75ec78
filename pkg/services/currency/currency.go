// Package currency converts the currency strings found on receipts into
// numeric values. Indonesian receipts use a period for thousands grouping
// and a comma for decimals (Rp 50.000,00); international ones do the
// opposite (50,000.00). The parser disambiguates the two by separator
// counting and position, and never fails: an uninterpretable string yields
// a nil value alongside the original input.
package currency

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
)

const (
	// MinAmount and MaxAmount bound what counts as a reasonable receipt
	// total. One trillion rupiah is well past any reimbursable purchase.
	MinAmount = 0.0
	MaxAmount = 1e12
)

// numberPattern captures a run of digits and separators surrounded only by
// non-digits. Strings with digits outside the run (dates, times, codes)
// deliberately fail to match at all.
var numberPattern = regexp.MustCompile(`^[^\d]*([\d.,\s]+)[^\d]*$`)

// amountPattern finds money-shaped substrings in free text: an optional
// currency prefix followed by digit groups with separators.
var amountPattern = regexp.MustCompile(
	`(?:[Rr][Pp]\.?\s*|[Ii][Dd][Rr]\s*)?(\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`,
)

// Parser strips configured currency prefixes and resolves separator
// semantics. It is stateless and safe for concurrent use.
type Parser struct {
	prefixes []*regexp.Regexp
}

// NewParser builds a parser from the configured prefix patterns.
func NewParser(cfg config.Currency) *Parser {
	return &Parser{prefixes: cfg.PrefixPatterns}
}

// Parse converts a raw currency string into a ParsedAmount. The original
// trimmed input is always preserved as Raw; Value is nil when no number
// could be recovered.
func (p *Parser) Parse(raw string) models.ParsedAmount {
	original := strings.TrimSpace(raw)
	if original == "" {
		return models.ParsedAmount{Raw: original}
	}

	cleaned := original
	for _, prefix := range p.prefixes {
		cleaned = prefix.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return models.ParsedAmount{Raw: original}
	}

	m := numberPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return models.ParsedAmount{Raw: original}
	}

	value, ok := parseNumber(strings.TrimSpace(m[1]))
	if !ok {
		return models.ParsedAmount{Raw: original}
	}
	return models.ParsedAmount{Raw: original, Value: &value}
}

// parseNumber resolves the thousands/decimal ambiguity of a digit run.
func parseNumber(s string) (float64, bool) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return 0, false
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	var normalized string
	switch {
	case dots == 0 && commas == 0:
		normalized = s

	case dots == 0 && commas == 1:
		// 50,00 is a decimal; 50,000 is thousands grouping.
		trailing := len(s) - strings.Index(s, ",") - 1
		switch trailing {
		case 2:
			normalized = strings.Replace(s, ",", ".", 1)
		case 3:
			normalized = strings.Replace(s, ",", "", 1)
		default:
			normalized = strings.Replace(s, ",", ".", 1)
		}

	case dots == 1 && commas == 0:
		// 50.00 is a decimal; 50.000 is Indonesian thousands grouping.
		trailing := len(s) - strings.Index(s, ".") - 1
		switch trailing {
		case 3:
			normalized = strings.Replace(s, ".", "", 1)
		default:
			normalized = s
		}

	case dots >= 1 && commas >= 1:
		// Whichever separator occurs last is the decimal separator.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			normalized = strings.ReplaceAll(s, ".", "")
			normalized = strings.ReplaceAll(normalized, ",", ".")
		} else {
			normalized = strings.ReplaceAll(s, ",", "")
		}

	case dots > 1:
		// 1.234.567 -> all dots are thousands separators.
		normalized = strings.ReplaceAll(s, ".", "")

	default:
		// 1,234,567 -> all commas are thousands separators.
		normalized = strings.ReplaceAll(s, ",", "")
	}

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// FormatAsInteger rounds a parsed value to the nearest whole unit; receipts
// carry no sub-unit currency. Nil in, nil out.
func FormatAsInteger(value *float64) *int64 {
	if value == nil {
		return nil
	}
	n := int64(math.Round(*value))
	return &n
}

// IsValidAmount reports whether a parsed value lies inside [min, max].
func IsValidAmount(value *float64, min, max float64) bool {
	if value == nil {
		return false
	}
	return *value >= min && *value <= max
}

// Amount is one money-shaped match found by ExtractAllAmounts.
type Amount struct {
	Raw      string
	Value    float64
	Position int
}

// ExtractAllAmounts scans free text for money-shaped substrings and parses
// each one, keeping only strictly positive results.
func (p *Parser) ExtractAllAmounts(text string) []Amount {
	var amounts []Amount
	for _, loc := range amountPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		parsed := p.Parse(raw)
		if parsed.Value != nil && *parsed.Value > 0 {
			amounts = append(amounts, Amount{Raw: raw, Value: *parsed.Value, Position: loc[0]})
		}
	}
	return amounts
}
