package fx

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateSet carries TRY-based exchange rates as delivered by the rate service.
type RateSet struct {
	USDTRY    decimal.Decimal `json:"USD_TRY"`
	EURTRY    decimal.Decimal `json:"EUR_TRY"`
	FetchedAt time.Time       `json:"fetched_at,omitempty"`
}

// Rate returns the TRY value of one unit of c. Zero or negative rates are
// reported as missing.
func (r RateSet) Rate(c Currency) (decimal.Decimal, bool) {
	var rate decimal.Decimal
	switch c {
	case TRY:
		return decimal.NewFromInt(1), true
	case USD:
		rate = r.USDTRY
	case EUR:
		rate = r.EURTRY
	default:
		return decimal.Zero, false
	}
	if !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Missing lists the non-pivot currencies without a usable rate.
func (r RateSet) Missing() []Currency {
	var out []Currency
	for _, c := range Supported() {
		if _, ok := r.Rate(c); !ok {
			out = append(out, c)
		}
	}
	return out
}

// Complete reports whether every supported currency has a rate.
func (r RateSet) Complete() bool {
	return len(r.Missing()) == 0
}
