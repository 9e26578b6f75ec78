package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/config"
)

func newTestParser() *Parser {
	return NewParser(config.Default().Currency)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"indonesian with Rp", "Rp 50.000", 50000},
		{"indonesian with decimals", "Rp 50.000,00", 50000},
		{"large amount", "Rp 1.234.567", 1234567},
		{"Rp dot prefix", "Rp. 75.000", 75000},
		{"IDR prefix", "IDR 100.000", 100000},
		{"no prefix", "50.000", 50000},
		{"international thousands", "50,000", 50000},
		{"international with decimals", "50,000.00", 50000},
		{"plain number", "50000", 50000},
		{"extra whitespace", "  Rp  50.000  ", 50000},
		{"lowercase rp", "rp 25.000", 25000},
		{"comma decimal", "50,00", 50},
		{"multiple commas", "1,234,567", 1234567},
		{"dollar prefix", "$ 50,000.00", 50000},
	}
	parser := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(tt.input)
			require.NotNil(t, got.Value, "expected %q to parse", tt.input)
			assert.Equal(t, tt.want, *got.Value)
		})
	}
}

func TestParseKeepsRaw(t *testing.T) {
	got := newTestParser().Parse("Rp 50.000")
	assert.Equal(t, "Rp 50.000", got.Raw)
}

func TestParseUnparsable(t *testing.T) {
	parser := newTestParser()
	for _, input := range []string{"", "   ", "Hello World", "Rp", "..,,"} {
		got := parser.Parse(input)
		assert.Nil(t, got.Value, "input %q", input)
	}
}

func TestParsePreservesOriginalOnFailure(t *testing.T) {
	got := newTestParser().Parse("Hello World")
	assert.Nil(t, got.Value)
	assert.Equal(t, "Hello World", got.Raw)
}

func TestParseRejectsDateShapedStrings(t *testing.T) {
	// Digits outside a single separator run must not parse.
	got := newTestParser().Parse("11/01/2026")
	assert.Nil(t, got.Value)
}

func TestFormatAsInteger(t *testing.T) {
	parser := newTestParser()

	got := parser.Parse("Rp 50.500")
	require.NotNil(t, got.Value)
	n := FormatAsInteger(got.Value)
	require.NotNil(t, n)
	assert.Equal(t, int64(50500), *n)

	got = parser.Parse("50,60")
	require.NotNil(t, got.Value)
	n = FormatAsInteger(got.Value)
	require.NotNil(t, n)
	assert.Equal(t, int64(51), *n)

	assert.Nil(t, FormatAsInteger(nil))
}

func TestIsValidAmount(t *testing.T) {
	positive := 50000.0
	negative := -100.0
	huge := 1e15

	assert.True(t, IsValidAmount(&positive, MinAmount, MaxAmount))
	assert.False(t, IsValidAmount(&negative, MinAmount, MaxAmount))
	assert.False(t, IsValidAmount(nil, MinAmount, MaxAmount))
	assert.False(t, IsValidAmount(&huge, MinAmount, MaxAmount))
}

func TestExtractAllAmounts(t *testing.T) {
	parser := newTestParser()

	t.Run("single amount", func(t *testing.T) {
		amounts := parser.ExtractAllAmounts("Total: Rp 50.000")
		require.NotEmpty(t, amounts)
		values := make([]float64, len(amounts))
		for i, a := range amounts {
			values[i] = a.Value
		}
		assert.Contains(t, values, 50000.0)
	})

	t.Run("multiple amounts", func(t *testing.T) {
		text := "Item 1: Rp 10.000\nItem 2: Rp 20.000\nTotal: Rp 30.000"
		amounts := parser.ExtractAllAmounts(text)
		values := make([]float64, len(amounts))
		for i, a := range amounts {
			values[i] = a.Value
		}
		assert.Contains(t, values, 10000.0)
		assert.Contains(t, values, 20000.0)
		assert.Contains(t, values, 30000.0)
	})

	t.Run("no amounts", func(t *testing.T) {
		assert.Empty(t, parser.ExtractAllAmounts("Hello World"))
	})

	t.Run("positions", func(t *testing.T) {
		amounts := parser.ExtractAllAmounts("Price: Rp 50.000")
		require.NotEmpty(t, amounts)
		for _, a := range amounts {
			assert.GreaterOrEqual(t, a.Position, 0)
			assert.NotEmpty(t, a.Raw)
		}
	})
}

func TestRealWorldFormats(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"TOTAL Rp 125.500", 125500},
		{"TUNAI    150.000", 150000},
		{"Jumlah : Rp. 250.000,00", 250000},
		{"Grand Total: 175.000", 175000},
	}
	parser := newTestParser()
	for _, tt := range tests {
		got := parser.Parse(tt.input)
		require.NotNil(t, got.Value, "input %q", tt.input)
		assert.Equal(t, tt.want, *got.Value, "input %q", tt.input)
	}
}
