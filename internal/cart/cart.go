// Package cart aggregates priced lines of a sale in progress.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// ErrLineNotFound is returned when an id does not match any line.
var ErrLineNotFound = errors.New("cart: line not found")

// Totals is the fold over all lines.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalVat      decimal.Decimal `json:"total_vat"`
	Total         decimal.Decimal `json:"total"`
}

func (t Totals) add(l Line) Totals {
	return Totals{
		Subtotal:      t.Subtotal.Add(l.Gross()),
		TotalDiscount: t.TotalDiscount.Add(l.DiscountAmount),
		TotalVat:      t.TotalVat.Add(l.VatAmount),
		Total:         t.Total.Add(l.TotalAmount),
	}
}

// Cart is an ordered list of lines with at most one line per product.
// It is not safe for concurrent use.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add appends line, or bumps the quantity of the existing line for the same
// product. It returns the resulting line.
func (c *Cart) Add(line Line) Line {
	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID {
			c.lines[i].Quantity++
			c.lines[i].Recalculate()
			return c.lines[i]
		}
	}
	line.Recalculate()
	c.lines = append(c.lines, line)
	return line
}

// Find returns the line with the given id.
func (c *Cart) Find(id string) (Line, bool) {
	for _, l := range c.lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// FindProduct returns the line holding productID.
func (c *Cart) FindProduct(productID string) (Line, bool) {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Update merges patch into the identified line and recomputes it.
// Out-of-range quantity and discount values are clamped.
func (c *Cart) Update(id string, patch Patch) (Line, error) {
	for i := range c.lines {
		if c.lines[i].ID != id {
			continue
		}
		patch.apply(&c.lines[i])
		c.lines[i].Recalculate()
		return c.lines[i], nil
	}
	return Line{}, fmt.Errorf("%w: %s", ErrLineNotFound, id)
}

// Remove drops the identified line.
func (c *Cart) Remove(id string) error {
	for i := range c.lines {
		if c.lines[i].ID == id {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLineNotFound, id)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Totals sums lines without currency conversion.
func (c *Cart) Totals() Totals {
	t := Totals{}
	for _, l := range c.lines {
		t = t.add(l)
	}
	return t
}

// TotalsIn sums lines after converting each into currency to.
func (c *Cart) TotalsIn(to fx.Currency, conv *fx.Converter, rates fx.RateSet) (Totals, error) {
	t := Totals{}
	for _, l := range c.lines {
		converted, err := ConvertLine(l, to, conv, rates)
		if err != nil {
			return Totals{}, err
		}
		t = t.add(converted)
	}
	return t, nil
}

// ConvertLine expresses the money fields of l in currency to.
func ConvertLine(l Line, to fx.Currency, conv *fx.Converter, rates fx.RateSet) (Line, error) {
	if l.Currency == to || l.Currency == "" {
		return l, nil
	}
	fields := []*decimal.Decimal{&l.UnitPrice, &l.DiscountAmount, &l.TotalAmount}
	for _, f := range fields {
		v, err := conv.Convert(*f, l.Currency, to, rates)
		if err != nil {
			return Line{}, err
		}
		*f = v
	}
	l.DiscountAmount = RoundMoney(l.DiscountAmount)
	l.TotalAmount = RoundMoney(l.TotalAmount)
	// VAT takes up the conversion rounding so the converted line still adds up.
	l.VatAmount = l.TotalAmount.Sub(l.Net())
	l.Currency = to
	return l, nil
}
