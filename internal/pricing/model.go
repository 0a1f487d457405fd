package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// Product is a catalog entry as returned by the product lookup service.
type Product struct {
	ID         ID               `json:"id" validate:"required"`
	Code       string           `json:"code"`
	Name       string           `json:"name"`
	PriceLists []PriceListEntry `json:"stockCardPriceLists" validate:"dive"`
	Warehouses []WarehouseStock `json:"stockCardWarehouse" validate:"dive"`
}

// PriceListEntry assigns a price to a product within one price list.
type PriceListEntry struct {
	PriceListID ID              `json:"priceListId" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	VatRate     decimal.Decimal `json:"vatRate"`
	PriceList   PriceList       `json:"priceList"`
}

// PriceList carries the list-level currency and VAT-inclusion flag.
type PriceList struct {
	Currency      fx.Currency `json:"currency" validate:"required,oneof=TRY USD EUR"`
	IsVatIncluded bool        `json:"isVatIncluded"`
}

// WarehouseStock is the on-hand quantity in one warehouse.
type WarehouseStock struct {
	WarehouseID ID              `json:"warehouseId" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ID is an upstream identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON accepts "42" and 42 alike.
func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Entry returns the price list entry for priceListID.
func (p Product) Entry(priceListID string) (PriceListEntry, bool) {
	for _, e := range p.PriceLists {
		if string(e.PriceListID) == priceListID {
			return e, true
		}
	}
	return PriceListEntry{}, false
}

// StockIn returns the on-hand quantity in warehouseID.
func (p Product) StockIn(warehouseID string) (decimal.Decimal, bool) {
	for _, w := range p.Warehouses {
		if string(w.WarehouseID) == warehouseID {
			return w.Quantity, true
		}
	}
	return decimal.Zero, false
}
