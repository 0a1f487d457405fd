package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrMalformedCatalog indicates the product lookup returned an unusable payload.
var ErrMalformedCatalog = errors.New("pricing: malformed catalog payload")

var catalogValidator = validator.New()

var hundred = decimal.NewFromInt(100)

// DecodeProducts parses and validates a product array.
func DecodeProducts(r io.Reader) ([]Product, error) {
	var products []Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	for i := range products {
		if err := validateProduct(&products[i]); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// DecodeProduct parses and validates a single product.
func DecodeProduct(r io.Reader) (Product, error) {
	var product Product
	if err := json.NewDecoder(r).Decode(&product); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	if err := validateProduct(&product); err != nil {
		return Product{}, err
	}
	return product, nil
}

func validateProduct(p *Product) error {
	for i := range p.PriceLists {
		p.PriceLists[i].PriceList.Currency = normaliseCurrency(p.PriceLists[i].PriceList.Currency)
	}
	if err := catalogValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: product %q: %v", ErrMalformedCatalog, p.ID, err)
	}
	for _, e := range p.PriceLists {
		if e.Price.IsNegative() {
			return fmt.Errorf("%w: product %q price list %q: negative price", ErrMalformedCatalog, p.ID, e.PriceListID)
		}
		if e.VatRate.IsNegative() || e.VatRate.GreaterThan(hundred) {
			return fmt.Errorf("%w: product %q price list %q: vat rate %s out of range", ErrMalformedCatalog, p.ID, e.PriceListID, e.VatRate)
		}
	}
	return nil
}

func normaliseCurrency[T ~string](c T) T {
	return T(strings.ToUpper(strings.TrimSpace(string(c))))
}
