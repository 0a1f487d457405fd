package cart

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// Line is one priced product entry in an in-progress sale.
type Line struct {
	ID                string           `json:"id"`
	ProductID         string           `json:"product_id"`
	ProductCode       string           `json:"product_code,omitempty"`
	ProductName       string           `json:"product_name,omitempty"`
	PriceListID       string           `json:"price_list_id,omitempty"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	DiscountRate      decimal.Decimal  `json:"discount_rate"`
	DiscountAmount    decimal.Decimal  `json:"discount_amount"`
	VatRate           decimal.Decimal  `json:"vat_rate"`
	VatAmount         decimal.Decimal  `json:"vat_amount"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	Currency          fx.Currency      `json:"currency"`
	AvailableQuantity *decimal.Decimal `json:"available_quantity,omitempty"`
}

// Gross is quantity times unit price, before discount and VAT, rounded to
// MoneyScale.
func (l Line) Gross() decimal.Decimal {
	return RoundMoney(decimal.NewFromInt(int64(l.Quantity)).Mul(l.UnitPrice))
}

// Net is the gross amount after discount.
func (l Line) Net() decimal.Decimal {
	return l.Gross().Sub(l.DiscountAmount)
}

// Recalculate clamps inputs into range and recomputes derived fields.
func (l *Line) Recalculate() {
	if l.Quantity < 1 {
		l.Quantity = 1
	}
	if l.UnitPrice.IsNegative() {
		l.UnitPrice = decimal.Zero
	}
	l.DiscountRate = clampPercent(l.DiscountRate)
	if l.VatRate.IsNegative() {
		l.VatRate = decimal.Zero
	}
	l.DiscountAmount, l.VatAmount, l.TotalAmount = CalculateLineTotals(
		decimal.NewFromInt(int64(l.Quantity)),
		l.UnitPrice,
		l.DiscountRate,
		l.VatRate,
	)
}

// Patch carries the editable fields of a line; nil fields are left untouched.
type Patch struct {
	Quantity     *int             `json:"quantity,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
	VatRate      *decimal.Decimal `json:"vat_rate,omitempty"`
}

func (p Patch) apply(l *Line) {
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		l.UnitPrice = *p.UnitPrice
	}
	if p.DiscountRate != nil {
		l.DiscountRate = *p.DiscountRate
	}
	if p.VatRate != nil {
		l.VatRate = *p.VatRate
	}
}
