// Package pricing turns catalog products into priced cart lines.
package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
)

// ErrNoPriceDefined is returned when the product has no entry in the
// customer's price list.
var ErrNoPriceDefined = errors.New("pricing: no price defined")

// Calculator prices products against a price list.
type Calculator struct {
	newID func() string
}

// NewCalculator constructs a calculator generating uuid line ids.
func NewCalculator() *Calculator {
	return &Calculator{newID: uuid.NewString}
}

// Price builds a quantity-one, undiscounted line for product using the entry
// of priceListID. VAT-inclusive prices are converted to VAT-exclusive.
func (c *Calculator) Price(product Product, priceListID string) (cart.Line, error) {
	entry, ok := product.Entry(priceListID)
	if !ok {
		return cart.Line{}, fmt.Errorf("%w: product %s in price list %s", ErrNoPriceDefined, product.ID, priceListID)
	}
	unitPrice := entry.Price
	if entry.PriceList.IsVatIncluded {
		unitPrice = cart.ExcludeVAT(entry.Price, entry.VatRate)
	}
	line := cart.Line{
		ID:           c.newID(),
		ProductID:    product.ID.String(),
		ProductCode:  product.Code,
		ProductName:  product.Name,
		PriceListID:  entry.PriceListID.String(),
		Quantity:     1,
		UnitPrice:    unitPrice,
		DiscountRate: decimal.Zero,
		VatRate:      entry.VatRate,
		Currency:     entry.PriceList.Currency,
	}
	line.Recalculate()
	return line, nil
}

// PriceForWarehouse prices the product and attaches the warehouse stock.
func (c *Calculator) PriceForWarehouse(product Product, priceListID, warehouseID string) (cart.Line, error) {
	line, err := c.Price(product, priceListID)
	if err != nil {
		return cart.Line{}, err
	}
	if qty, ok := product.StockIn(warehouseID); ok {
		line.AvailableQuantity = &qty
	}
	return line, nil
}
