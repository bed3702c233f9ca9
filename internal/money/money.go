// Package money wraps shopspring/decimal for all monetary arithmetic.
// Floats never cross this boundary: amounts enter as decimal strings and
// leave as fixed two-decimal strings.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Zero is the additive identity for monetary amounts.
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Parse converts a decimal string into an amount.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return d, nil
}

// MustParse converts a decimal string and panics on malformed input. Intended
// for constants and tests.
func MustParse(value string) decimal.Decimal {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt converts an integer amount of whole currency units.
func FromInt(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

// Round normalises an amount to two decimal places. Intermediate arithmetic
// stays at full precision; only outputs pass through here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders an amount with exactly two decimal places for API payloads.
func Format(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// Percent returns value applied as a percentage of base (base * value / 100)
// at full precision.
func Percent(base, value decimal.Decimal) decimal.Decimal {
	return base.Mul(value).Div(hundred)
}

// ClampNonNegative floors an amount at zero.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
