package config

import (
	"os"
	"regexp"
	"strconv"
	"time"
)

// Image holds the preprocessing tunables.
type Image struct {
	MaxWidth        int
	MaxHeight       int
	DenoiseStrength float64
	CLAHEClipLimit  float64
	CLAHETileSize   int
}

// DatePattern is one entry of the ordered date pattern list. Order matters:
// the first pattern that yields a plausible date wins.
type DatePattern struct {
	Regexp    *regexp.Regexp
	YearFirst bool // groups are year, month, day instead of day, month, year
	TextMonth bool // middle group is a month name resolved via the month table
}

// Extraction holds the field-extraction tunables. The keyword and pattern
// slices are evaluated in declared order; do not reorder them.
type Extraction struct {
	TotalKeywords           []string
	ExcludeKeywords         []string
	MerchantExcludePatterns []*regexp.Regexp
	DatePatterns            []DatePattern
	Months                  map[string]time.Month
	LineThreshold           float64
	MinTotalAmount          float64
	MerchantTopLines        int
}

// Currency holds the currency parsing tunables.
type Currency struct {
	PrefixPatterns []*regexp.Regexp
}

// Config is the full configuration consumed by the pipeline and server.
type Config struct {
	Port          string
	AzureEndpoint string
	AzureKey      string
	Image         Image
	Extraction    Extraction
	Currency      Currency
}

// Load builds the configuration from defaults with environment overrides
// for the numeric knobs. Call godotenv.Load beforehand if a .env file
// should be honored.
func Load() *Config {
	cfg := Default()
	cfg.Port = envString("PORT", cfg.Port)
	cfg.AzureEndpoint = envString("AZURE_VISION_ENDPOINT", "")
	cfg.AzureKey = envString("AZURE_VISION_KEY", "")
	cfg.Image.MaxWidth = envInt("MAX_IMAGE_WIDTH", cfg.Image.MaxWidth)
	cfg.Image.MaxHeight = envInt("MAX_IMAGE_HEIGHT", cfg.Image.MaxHeight)
	cfg.Image.DenoiseStrength = envFloat("DENOISE_STRENGTH", cfg.Image.DenoiseStrength)
	cfg.Image.CLAHEClipLimit = envFloat("CLAHE_CLIP_LIMIT", cfg.Image.CLAHEClipLimit)
	cfg.Image.CLAHETileSize = envInt("CLAHE_TILE_SIZE", cfg.Image.CLAHETileSize)
	cfg.Extraction.LineThreshold = envFloat("LINE_THRESHOLD", cfg.Extraction.LineThreshold)
	cfg.Extraction.MinTotalAmount = envFloat("MIN_TOTAL_AMOUNT", cfg.Extraction.MinTotalAmount)
	return cfg
}

// Default returns the built-in configuration, tuned for Indonesian and
// international receipts.
func Default() *Config {
	return &Config{
		Port: "8080",
		Image: Image{
			MaxWidth:        1280,
			MaxHeight:       1280,
			DenoiseStrength: 10,
			CLAHEClipLimit:  2.0,
			CLAHETileSize:   8,
		},
		Extraction: Extraction{
			TotalKeywords: []string{
				"grand total",
				"total",
				"jumlah",
				"bayar",
				"amount",
				"tunai",
				"cash",
				"subtotal",
				"sub total",
				"pembayaran",
				"tagihan",
				"total bayar",
				"total belanja",
			},
			ExcludeKeywords: []string{
				"diskon",
				"discount",
				"ppn",
				"tax",
				"pajak",
				"kembalian",
				"change",
				"item",
				"qty",
				"quantity",
			},
			MerchantExcludePatterns: []*regexp.Regexp{
				regexp.MustCompile(`^\d{2}[/\-]\d{2}[/\-]\d{2,4}$`),       // dates
				regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`),              // times
				regexp.MustCompile(`^\+?\d[\d\s\-]{8,}$`),                 // phone numbers
				regexp.MustCompile(`^(jl\.|jalan\b|alamat\b|address\b)`),  // address prefixes
				regexp.MustCompile(`^(telp?|phone|hp|whatsapp)\b`),       // phone prefixes
				regexp.MustCompile(`^wa\s*:`),                             // whatsapp label
				regexp.MustCompile(`^(npwp|nik)\b`),                       // ID numbers
				regexp.MustCompile(`^no\s*:`),                             // number label
				regexp.MustCompile(`^[\-=_\*]{3,}$`),                      // separator lines
				regexp.MustCompile(`^(struk|receipt|invoice|nota)\b`),     // document type labels
			},
			DatePatterns: []DatePattern{
				{Regexp: regexp.MustCompile(`(?i)\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})\b`)},
				{Regexp: regexp.MustCompile(`(?i)\b(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})\b`), YearFirst: true},
				{Regexp: regexp.MustCompile(`(?i)\b(\d{1,2})\s+(jan|feb|mar|apr|may|mei|jun|jul|aug|agu|sep|oct|okt|nov|dec|des)\w*\s+(\d{4})\b`), TextMonth: true},
				{Regexp: regexp.MustCompile(`(?i)\b(\d{1,2})\s+(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{4})\b`), TextMonth: true},
			},
			Months: map[string]time.Month{
				"jan": time.January, "january": time.January, "januari": time.January,
				"feb": time.February, "february": time.February, "februari": time.February,
				"mar": time.March, "march": time.March, "maret": time.March,
				"apr": time.April, "april": time.April,
				"may": time.May, "mei": time.May,
				"jun": time.June, "june": time.June, "juni": time.June,
				"jul": time.July, "july": time.July, "juli": time.July,
				"aug": time.August, "august": time.August, "agu": time.August, "agustus": time.August,
				"sep": time.September, "september": time.September,
				"oct": time.October, "october": time.October, "okt": time.October, "oktober": time.October,
				"nov": time.November, "november": time.November,
				"dec": time.December, "december": time.December, "des": time.December, "desember": time.December,
			},
			LineThreshold:    20,
			MinTotalAmount:   100,
			MerchantTopLines: 5,
		},
		Currency: Currency{
			PrefixPatterns: []*regexp.Regexp{
				regexp.MustCompile(`[Rr][Pp]\.?\s*`),
				regexp.MustCompile(`[Ii][Dd][Rr]\s*`),
				regexp.MustCompile(`\$\s*`),
				regexp.MustCompile(`[Uu][Ss][Dd]\s*`),
			},
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
