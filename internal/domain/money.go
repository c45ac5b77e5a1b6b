package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for snapshots that have no lines to take a currency from.
const DefaultCurrency = "USD"

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidAmount    = errors.New("invalid money amount")
)

// Money is an immutable decimal amount in an ISO-4217 currency.
// The amount is serialized as a string and never passes through float64.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, CurrencyCode: currency}
}

func ParseMoney(amount, currency string) (Money, error) {
	if amount == "" {
		return ZeroMoney(currency), nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w %q: %v", ErrInvalidAmount, amount, err)
	}
	return Money{Amount: d, CurrencyCode: currency}, nil
}

// MustMoney panics on a malformed amount. Intended for constants and tests.
func MustMoney(amount, currency string) Money {
	m, err := ParseMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add sums two amounts. A zero operand adopts the other's currency, so an
// empty accumulator can be seeded with ZeroMoney("").
func (m Money) Add(o Money) (Money, error) {
	switch {
	case o.CurrencyCode == "" || o.CurrencyCode == m.CurrencyCode:
	case m.CurrencyCode == "" || (m.Amount.IsZero() && m.CurrencyCode != o.CurrencyCode):
		m.CurrencyCode = o.CurrencyCode
	default:
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.CurrencyCode, o.CurrencyCode)
	}
	return Money{Amount: m.Amount.Add(o.Amount), CurrencyCode: m.CurrencyCode}, nil
}

func (m Money) MulQuantity(q Quantity) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(q))), CurrencyCode: m.CurrencyCode}
}

// DivQuantity returns the per-unit amount. Division by a non-positive
// quantity yields a zero amount.
func (m Money) DivQuantity(q Quantity) Money {
	if q <= 0 {
		return ZeroMoney(m.CurrencyCode)
	}
	return Money{Amount: m.Amount.Div(decimal.NewFromInt(int64(q))), CurrencyCode: m.CurrencyCode}
}

func (m Money) Equal(o Money) bool {
	return m.CurrencyCode == o.CurrencyCode && m.Amount.Equal(o.Amount)
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.CurrencyCode
}

// Quantity is a count of units on a cart line.
type Quantity int

func (q Quantity) Add(delta int) Quantity {
	return q + Quantity(delta)
}

func (q Quantity) Positive() bool {
	return q > 0
}
