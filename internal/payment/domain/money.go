package domain

import "github.com/shopspring/decimal"

var centsFactor = decimal.NewFromInt(100)

// CentsFromDecimal converts a boundary amount to cents, rejecting negative
// values and anything finer than two fraction digits.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() || d.IsZero() {
		return 0, ErrInvalidAmount
	}
	c := d.Mul(centsFactor)
	if !c.IsInteger() {
		return 0, ErrInvalidAmount
	}
	return c.IntPart(), nil
}

// NonNegativeCentsFromDecimal is CentsFromDecimal for fields where zero is
// fine, such as discounts and shipping.
func NonNegativeCentsFromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsZero() {
		return 0, nil
	}
	return CentsFromDecimal(d)
}

// DecimalFromCents renders cents for the gateway wire format.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsFactor)
}
