package fx

import (
	"context"
	"fmt"
	"sort"
)

// RateProvider exposes the current exchange-rate set.
type RateProvider interface {
	Rates(ctx context.Context) (RateSet, error)
}

// Gap is a required currency without a usable rate.
type Gap struct {
	Currency Currency `json:"currency"`
}

// Result summarises the validation outcome.
type Result struct {
	Checked int     `json:"checked"`
	Gaps    []Gap   `json:"gaps"`
	Rates   RateSet `json:"rates"`
}

// OK reports whether no gaps were found.
func (r Result) OK() bool {
	return len(r.Gaps) == 0
}

// Validate ensures every requested currency can be converted with the
// provider's current rates. An empty request checks all supported currencies.
func Validate(ctx context.Context, provider RateProvider, required []Currency) (Result, error) {
	var res Result
	if provider == nil {
		return res, fmt.Errorf("fx: rate provider required")
	}
	if len(required) == 0 {
		required = Supported()
	}
	set := make(map[Currency]struct{}, len(required))
	for _, c := range required {
		parsed, err := ParseCurrency(string(c))
		if err != nil {
			return Result{}, err
		}
		set[parsed] = struct{}{}
	}
	rates, err := provider.Rates(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fx: load rates: %w", err)
	}
	res.Rates = rates
	res.Gaps = make([]Gap, 0)
	keys := make([]Currency, 0, len(set))
	for c := range set {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, c := range keys {
		res.Checked++
		if _, ok := rates.Rate(c); !ok {
			res.Gaps = append(res.Gaps, Gap{Currency: c})
		}
	}
	return res, nil
}
