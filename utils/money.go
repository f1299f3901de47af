// utils/money.go
package utils

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CreditsToUSDCents converts credits at a rate expressed per 100 credits and
// floors to whole cents.
func CreditsToUSDCents(credits, centsPer100Credits int64) int64 {
	return decimal.NewFromInt(credits).
		Div(hundred).
		Mul(decimal.NewFromInt(centsPer100Credits)).
		Floor().
		IntPart()
}

// FormatUSD renders cents as a dollar string, e.g. 1099 -> "10.99".
func FormatUSD(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
