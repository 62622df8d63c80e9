package shopify

import "github.com/shopspring/decimal"

// ParseDecimal parses a platform money string, returning zero on malformed
// input rather than failing the whole order page.
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
