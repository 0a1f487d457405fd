package cart

import "github.com/shopspring/decimal"

// MoneyScale is the number of fraction digits kept on derived money amounts.
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount half away from zero to MoneyScale digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// CalculateLineTotals derives discount, VAT and total for a line.
// Every result is rounded to MoneyScale and the line total is rounded once
// from the unrounded net plus VAT, so a VAT-inclusive price that was backed
// out and re-applied lands on its original amount. Rounding differences are
// absorbed by the VAT amount, keeping gross - discount + vat == total.
func CalculateLineTotals(quantity, unitPrice, discountPercent, vatPercent decimal.Decimal) (discountAmount, vatAmount, lineTotal decimal.Decimal) {
	grossAmount := quantity.Mul(unitPrice)
	netAmount := grossAmount.Sub(grossAmount.Mul(discountPercent).Div(hundred))
	lineTotal = RoundMoney(netAmount.Add(netAmount.Mul(vatPercent).Div(hundred)))

	net := RoundMoney(netAmount)
	discountAmount = RoundMoney(grossAmount).Sub(net)
	vatAmount = lineTotal.Sub(net)
	return
}

// ExcludeVAT backs the VAT out of a VAT-inclusive price. The result keeps
// full precision; rounding happens on the derived line amounts.
func ExcludeVAT(gross, vatPercent decimal.Decimal) decimal.Decimal {
	if vatPercent.IsZero() {
		return gross
	}
	return gross.Div(decimal.NewFromInt(1).Add(vatPercent.Div(hundred)))
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
