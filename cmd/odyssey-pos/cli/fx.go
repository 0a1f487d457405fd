package cli

import (
	"errors"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// FXOpsCLI offers operational helpers around the exchange-rate feed.
type FXOpsCLI struct {
	rates     fx.RateProvider
	converter *fx.Converter
}

// NewFXOpsCLI constructs a helper backed by the provided rate provider.
func NewFXOpsCLI(rates fx.RateProvider, converter *fx.Converter) (*FXOpsCLI, error) {
	if rates == nil {
		return nil, errors.New("fx cli: rate provider required")
	}
	if converter == nil {
		converter = fx.NewConverter(fx.DefaultPolicy())
	}
	return &FXOpsCLI{rates: rates, converter: converter}, nil
}
