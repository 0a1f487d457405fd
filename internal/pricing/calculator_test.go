package pricing

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleProduct() Product {
	return Product{
		ID:   "P-1",
		Code: "SKU-1",
		Name: "Olive oil",
		PriceLists: []PriceListEntry{
			{PriceListID: "retail", Price: dec("100"), VatRate: dec("18"), PriceList: PriceList{Currency: fx.TRY}},
			{PriceListID: "export", Price: dec("121"), VatRate: dec("21"), PriceList: PriceList{Currency: fx.USD, IsVatIncluded: true}},
		},
		Warehouses: []WarehouseStock{{WarehouseID: "W1", Quantity: dec("12")}},
	}
}

func TestPriceVatExclusive(t *testing.T) {
	line, err := NewCalculator().Price(sampleProduct(), "retail")
	require.NoError(t, err)

	assert.NotEmpty(t, line.ID)
	assert.Equal(t, "P-1", line.ProductID)
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(dec("100")))
	assert.True(t, line.DiscountRate.IsZero())
	assert.True(t, line.VatAmount.Equal(dec("18")))
	assert.True(t, line.TotalAmount.Equal(dec("118")))
	assert.Equal(t, fx.TRY, line.Currency)
}

func TestPriceVatInclusiveBacksOutVat(t *testing.T) {
	line, err := NewCalculator().Price(sampleProduct(), "export")
	require.NoError(t, err)

	assert.True(t, line.UnitPrice.Sub(dec("100")).Abs().LessThan(dec("0.000001")), "unit price %s", line.UnitPrice)
	assert.True(t, line.TotalAmount.Equal(dec("121")), "total %s", line.TotalAmount)
	assert.True(t, line.VatAmount.Equal(dec("21")), "vat %s", line.VatAmount)
	assert.Equal(t, fx.USD, line.Currency, "currency comes from the price list entry")
}

func TestPriceVatInclusiveKeepsShelfPrice(t *testing.T) {
	p := sampleProduct()
	p.PriceLists = append(p.PriceLists, PriceListEntry{
		PriceListID: "shelf",
		Price:       dec("250"),
		VatRate:     dec("18"),
		PriceList:   PriceList{Currency: fx.TRY, IsVatIncluded: true},
	})

	line, err := NewCalculator().Price(p, "shelf")
	require.NoError(t, err)
	assert.True(t, line.TotalAmount.Equal(dec("250")), "total %s", line.TotalAmount)
	assert.True(t, line.VatAmount.Equal(dec("38.14")), "vat %s", line.VatAmount)

	c := cart.New()
	c.Add(line)
	qty := 3
	updated, err := c.Update(line.ID, cart.Patch{Quantity: &qty})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(dec("750")), "total %s", updated.TotalAmount)
}

func TestPriceNoPriceDefined(t *testing.T) {
	_, err := NewCalculator().Price(sampleProduct(), "wholesale")
	assert.ErrorIs(t, err, ErrNoPriceDefined)
}

func TestPricedLineFeedsCart(t *testing.T) {
	line, err := NewCalculator().Price(sampleProduct(), "retail")
	require.NoError(t, err)

	c := cart.New()
	c.Add(line)
	qty := 2
	discount := dec("10")
	updated, err := c.Update(line.ID, cart.Patch{Quantity: &qty, DiscountRate: &discount})
	require.NoError(t, err)

	assert.True(t, updated.Gross().Equal(dec("200")))
	assert.True(t, updated.DiscountAmount.Equal(dec("20")))
	assert.True(t, updated.Net().Equal(dec("180")))
	assert.True(t, updated.VatAmount.Equal(dec("32.4")))
	assert.True(t, updated.TotalAmount.Equal(dec("212.4")))
}

func TestPriceForWarehouse(t *testing.T) {
	calc := NewCalculator()
	line, err := calc.PriceForWarehouse(sampleProduct(), "retail", "W1")
	require.NoError(t, err)
	require.NotNil(t, line.AvailableQuantity)
	assert.True(t, line.AvailableQuantity.Equal(dec("12")))

	line, err = calc.PriceForWarehouse(sampleProduct(), "retail", "W9")
	require.NoError(t, err)
	assert.Nil(t, line.AvailableQuantity)
}

func TestDecodeProducts(t *testing.T) {
	payload := `[{
		"id": 42,
		"code": "SKU-42",
		"name": "Tea",
		"stockCardPriceLists": [
			{"priceListId": 7, "price": "100", "vatRate": "18", "priceList": {"currency": "try", "isVatIncluded": false}}
		],
		"stockCardWarehouse": [{"warehouseId": "W1", "quantity": 3}]
	}]`
	products, err := DecodeProducts(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, ID("42"), p.ID)
	entry, ok := p.Entry("7")
	require.True(t, ok)
	assert.Equal(t, fx.TRY, entry.PriceList.Currency)
	assert.True(t, entry.Price.Equal(dec("100")))
}

func TestDecodeProductsRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"missing id":     `[{"name":"x","stockCardPriceLists":[]}]`,
		"bad currency":   `[{"id":"1","stockCardPriceLists":[{"priceListId":"a","price":"1","vatRate":"0","priceList":{"currency":"GBP"}}]}]`,
		"negative price": `[{"id":"1","stockCardPriceLists":[{"priceListId":"a","price":"-1","vatRate":"0","priceList":{"currency":"TRY"}}]}]`,
		"vat over 100":   `[{"id":"1","stockCardPriceLists":[{"priceListId":"a","price":"1","vatRate":"101","priceList":{"currency":"TRY"}}]}]`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProducts(strings.NewReader(payload))
			assert.ErrorIs(t, err, ErrMalformedCatalog)
		})
	}
}
