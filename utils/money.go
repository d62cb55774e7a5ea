package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money errors
var (
	ErrMalformedAmount = errors.New("malformed monetary amount")
	ErrNegativeAmount  = errors.New("monetary amount cannot be negative")
	ErrAmountOverflow  = errors.New("monetary amount overflows")
)

// Money is a monetary value in integer minor units (cents).
// All arithmetic is checked; operations that would go negative or
// overflow report failure instead of wrapping.
type Money int64

// ParseMoney converts a decimal string (e.g. "12.34") into Money.
// The input must be exact to at most two fractional digits.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("%w: %q has more than two fractional digits", ErrMalformedAmount, s)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	if !cents.BigInt().IsInt64() {
		return 0, ErrAmountOverflow
	}
	return Money(cents.IntPart()), nil
}

// ParseNonNegativeMoney is ParseMoney restricted to amounts >= 0.
func ParseNonNegativeMoney(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return 0, err
	}
	if m < 0 {
		return 0, ErrNegativeAmount
	}
	return m, nil
}

// Add returns m+other, reporting overflow.
func (m Money) Add(other Money) (Money, bool) {
	sum := m + other
	if (other > 0 && sum < m) || (other < 0 && sum > m) {
		return 0, false
	}
	return sum, true
}

// Sub returns m-other; ok is false when the result would be negative.
func (m Money) Sub(other Money) (Money, bool) {
	if other > m {
		return 0, false
	}
	return m - other, true
}

// Cents returns the raw minor-unit count.
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the value as a shopspring decimal in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String renders the value as a decimal string with two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
