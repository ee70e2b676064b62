package money

import "github.com/shopspring/decimal"

// Amounts are carried as int64 minor units (QAR dirhams). Fee rates are exact
// decimals so a 10% fee on 50.01 QAR rounds the same way the books do:
// half-up on the minor unit.

// ApplyRate multiplies a minor-unit amount by a rate and rounds half-up.
func ApplyRate(amountMinor int64, rate decimal.Decimal) int64 {
	if amountMinor == 0 || rate.IsZero() {
		return 0
	}
	product := decimal.NewFromInt(amountMinor).Mul(rate)
	return roundHalfUp(product)
}

// ParseRate parses a decimal rate string ("0.15"). Invalid input yields the
// fallback.
func ParseRate(raw string, fallback decimal.Decimal) decimal.Decimal {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return fallback
	}
	return rate
}

// Clamp bounds a minor-unit amount to [0, max]. A max of zero means no cap.
func Clamp(amountMinor, maxMinor int64) int64 {
	if amountMinor < 0 {
		return 0
	}
	if maxMinor > 0 && amountMinor > maxMinor {
		return maxMinor
	}
	return amountMinor
}

func roundHalfUp(d decimal.Decimal) int64 {
	// decimal.Round is half-away-from-zero; amounts here are non-negative so
	// it matches half-up.
	return d.Round(0).IntPart()
}
