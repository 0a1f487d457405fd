package sale

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

var (
	ErrInvalidPayment  = errors.New("sale: invalid payment")
	ErrPaymentNotFound = errors.New("sale: payment not found")
)

// Payments is the ordered list of payments collected for a sale.
type Payments struct {
	entries []PaymentEntry
}

// Add validates entry, assigns an id when missing and appends it.
func (p *Payments) Add(entry PaymentEntry) (PaymentEntry, error) {
	if !entry.Method.Valid() {
		return PaymentEntry{}, fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, entry.Method)
	}
	if !entry.Amount.IsPositive() {
		return PaymentEntry{}, fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	p.entries = append(p.entries, entry)
	return entry, nil
}

// Remove drops the payment with id.
func (p *Payments) Remove(id string) error {
	for i := range p.entries {
		if p.entries[i].ID == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPaymentNotFound, id)
}

// Entries returns a copy of the payments.
func (p *Payments) Entries() []PaymentEntry {
	out := make([]PaymentEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *Payments) Len() int {
	return len(p.entries)
}

func (p *Payments) Clear() {
	p.entries = nil
}

// Paid sums the payments expressed in currency to.
func (p *Payments) Paid(to fx.Currency, conv *fx.Converter, rates fx.RateSet) (decimal.Decimal, error) {
	paid := decimal.Zero
	for _, e := range p.entries {
		amount := e.Amount
		if e.Currency != "" && e.Currency != to {
			converted, err := conv.Convert(e.Amount, e.Currency, to, rates)
			if err != nil {
				return decimal.Zero, err
			}
			amount = cart.RoundMoney(converted)
		}
		paid = paid.Add(amount)
	}
	return paid, nil
}
