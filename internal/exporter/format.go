package exporter

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// formatDecimal renders an optional decimal in canonical form, missing values
// become empty cells
func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// formatIntPtr renders an optional integer, missing values become empty cells
func formatIntPtr(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// formatStringPtr renders an optional string verbatim, missing values become
// empty cells
func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// formatInt formats an int value for CSV output
func formatInt(n int) string {
	return strconv.Itoa(n)
}
