package fx

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// Currency is an ISO 4217 code accepted by the sale engine.
type Currency string

const (
	// TRY is the pivot currency; its rate is always 1.
	TRY Currency = "TRY"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// ErrUnsupportedCurrency is returned for codes outside TRY/USD/EUR.
var ErrUnsupportedCurrency = errors.New("fx: unsupported currency")

// Supported lists the currencies that can be converted.
func Supported() []Currency {
	return []Currency{TRY, USD, EUR}
}

// ParseCurrency normalises and validates a currency code.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	c := Currency(unit.String())
	switch c {
	case TRY, USD, EUR:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, c)
	}
}

func (c Currency) String() string {
	return string(c)
}
