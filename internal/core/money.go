// Package core provides money parsing and handling utilities.
//
// This file contains the Money value type used for every balance and amount.
// Amounts are fixed-point decimals with at most two fractional digits; all
// arithmetic is exact so reverting a delta restores the prior balance.
package core

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the number of fractional digits kept for currency amounts.
	MoneyScale = 2
	// maxIntegerDigits mirrors NUMERIC(15,2).
	maxIntegerDigits = 13
)

var (
	ErrInvalidAmount  = Validation("", "amount must be a positive decimal with at most 2 decimal places")
	ErrAmountTooLarge = Validation("", "amount exceeds 13 integer digits")
)

// Money is an exact decimal currency amount.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// NewMoney wraps d, keeping it exact.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromInt returns a whole-unit amount.
func MoneyFromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// MoneyFromString parses a stored decimal representation without policy checks.
// Negative values are accepted; this is used for balances read from storage.
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// ParseAmount converts user input to a positive Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike
// display formatting it never rounds: more than two fractional digits, signs,
// zero and non-digit characters are rejected.
//
// Examples:
//
//	ParseAmount("30000")   -> 30000.00, nil
//	ParseAmount("12,34")   -> 12.34, nil
//	ParseAmount("12.345")  -> error
//	ParseAmount("-1")      -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	if len(parts) == 2 {
		if len(parts[1]) == 0 || len(parts[1]) > MoneyScale {
			return Money{}, ErrInvalidAmount
		}
		for _, r := range parts[1] {
			if !unicode.IsDigit(r) {
				return Money{}, ErrInvalidAmount
			}
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{d: d}
	if err := m.ValidateAmount(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ValidateAmount checks the rules for a transaction, transfer or budget amount.
func (m Money) ValidateAmount() error {
	if !m.d.IsPositive() {
		return ErrInvalidAmount
	}
	if err := m.ValidateScale(); err != nil {
		return err
	}
	return nil
}

// ValidateScale checks precision only; sign is not constrained.
func (m Money) ValidateScale() error {
	if !m.d.Equal(m.d.Round(MoneyScale)) {
		return ErrInvalidAmount
	}
	if len(m.d.Abs().Truncate(0).String()) > maxIntegerDigits {
		return ErrAmountTooLarge
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Cmp(o Money) int   { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}
func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.d.StringFixed(MoneyScale)
}

// MarshalJSON encodes the amount as a fixed two-digit string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil {
		return ErrInvalidAmount
	}
	m.d = d
	return nil
}

// Sum adds up amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
