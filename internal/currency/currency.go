package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Code is the only currency the toll network settles in (Guatemalan quetzal).
const Code = "GTQ"

// Places is the number of minor-unit digits for Code.
const Places = 2

// Round quantizes d to centavos, rounding halves away from zero. Amounts in
// this system are never negative, so this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ToMinorUnits converts an amount to integer centavos for storage.
func ToMinorUnits(d decimal.Decimal) int64 {
	return Round(d).Shift(Places).IntPart()
}

// FromMinorUnits converts stored centavos back to an amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// Parse reads a non-negative amount such as "125.50". Blank input is zero.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q is negative", s)
	}
	return Round(d), nil
}

// Format renders an amount for people, e.g. "Q27.00".
func Format(d decimal.Decimal) string {
	return "Q" + d.StringFixed(Places)
}
