package xlledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseNumber reads an amount written as text. Surrounding spaces and thousands
// separators are ignored; "1,18,000.50" and "118000.5" both parse.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// cellAmount extracts the numeric value of a cell. present is false for blank cells;
// numeric is false for cells holding something other than a number.
func cellAmount(c Cell) (value decimal.Decimal, present, numeric bool) {
	if c.IsBlank() {
		return decimal.Zero, false, false
	}
	switch v := c.Value.(type) {
	case float64:
		return decimal.NewFromFloat(v), true, true
	case string:
		d, ok := parseNumber(v)
		return d, true, ok
	default:
		return decimal.Zero, true, false
	}
}
