package fx

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMissingExchangeRate signals a conversion that needs an unavailable rate.
var ErrMissingExchangeRate = errors.New("fx: missing exchange rate")

// MissingRateError names the currency whose rate was missing.
type MissingRateError struct {
	Currency Currency
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("fx: missing exchange rate for %s", e.Currency)
}

func (e *MissingRateError) Unwrap() error {
	return ErrMissingExchangeRate
}

// Normalize converts amount from one currency to another using TRY as pivot.
// Identical currencies short-circuit without touching rates.
func Normalize(amount decimal.Decimal, from, to Currency, rates RateSet) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	inTRY := amount
	if from != TRY {
		rate, ok := rates.Rate(from)
		if !ok {
			return decimal.Zero, &MissingRateError{Currency: from}
		}
		inTRY = amount.Mul(rate)
	}
	if to == TRY {
		return inTRY, nil
	}
	rate, ok := rates.Rate(to)
	if !ok {
		return decimal.Zero, &MissingRateError{Currency: to}
	}
	return inTRY.Div(rate), nil
}

// Converter applies a Policy on top of Normalize.
type Converter struct {
	policy Policy
}

// NewConverter constructs a converter instance.
func NewConverter(policy Policy) *Converter {
	if policy.Fallback == "" {
		policy.Fallback = FallbackStrict
	}
	return &Converter{policy: policy}
}

// Policy returns the active policy.
func (c *Converter) Policy() Policy {
	if c == nil {
		return DefaultPolicy()
	}
	return c.policy
}

// Convert normalises amount. A nil converter behaves strictly.
func (c *Converter) Convert(amount decimal.Decimal, from, to Currency, rates RateSet) (decimal.Decimal, error) {
	out, err := Normalize(amount, from, to, rates)
	if err == nil {
		return out, nil
	}
	if c != nil && c.policy.Fallback == FallbackIdentity && errors.Is(err, ErrMissingExchangeRate) {
		return amount, nil
	}
	return decimal.Zero, err
}
