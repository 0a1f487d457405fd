package sale

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

var (
	ErrNotBalanced      = errors.New("sale: payments do not balance the sale total")
	ErrSessionClosed    = errors.New("sale: session already submitted")
	ErrSubmissionFailed = errors.New("sale: submission failed")
)

// SubmissionError wraps a persistence failure. The session keeps its lines
// and payments so the submit can be retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "sale: submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() []error {
	return []error{ErrSubmissionFailed, e.Err}
}

// Submitter persists a balanced sale.
type Submitter interface {
	SubmitSale(ctx context.Context, sub Submission) (Receipt, error)
}

// SessionOptions tunes reconciliation for a session.
type SessionOptions struct {
	// Tolerance is the exclusive bound on |remaining| for a balanced sale.
	// Zero requires an exact match.
	Tolerance decimal.Decimal
	Converter *fx.Converter
	Now       func() time.Time
}

// Session is one sale in progress. It is not safe for concurrent use; the
// Registry serialises access.
type Session struct {
	id        string
	header    Header
	cart      *cart.Cart
	payments  Payments
	state     State
	tolerance decimal.Decimal
	converter *fx.Converter
	rates     fx.RateSet
	receipt   *Receipt
	openedAt  time.Time
	now       func() time.Time
}

// NewSession opens an empty session.
func NewSession(id string, header Header, opts SessionOptions) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tolerance := opts.Tolerance
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	return &Session{
		id:        id,
		header:    header,
		cart:      cart.New(),
		state:     StateEmpty,
		tolerance: tolerance,
		converter: opts.Converter,
		openedAt:  now().UTC(),
		now:       now,
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) Header() Header { return s.header }
func (s *Session) State() State   { return s.state }

// UseRates replaces the exchange rates used for cross-currency lines and payments.
func (s *Session) UseRates(rates fx.RateSet) {
	s.rates = rates
	s.settle()
}

// NeedsRates reports whether any line, payment, or extra currency differs
// from the sale currency.
func (s *Session) NeedsRates(extra ...fx.Currency) bool {
	for _, c := range extra {
		if c != "" && c != s.header.Currency {
			return true
		}
	}
	for _, l := range s.cart.Lines() {
		if l.Currency != s.header.Currency {
			return true
		}
	}
	for _, p := range s.payments.Entries() {
		if p.Currency != s.header.Currency {
			return true
		}
	}
	return false
}

// AddLine adds a priced line, merging with an existing line for the same
// product. Lines that cannot be converted into the sale currency are rejected
// before the cart is touched.
func (s *Session) AddLine(line cart.Line) (cart.Line, error) {
	if s.state == StateSubmitted {
		return cart.Line{}, ErrSessionClosed
	}
	if _, err := cart.ConvertLine(line, s.header.Currency, s.converter, s.rates); err != nil {
		return cart.Line{}, err
	}
	added := s.cart.Add(line)
	s.settle()
	return added, nil
}

// UpdateLine merges patch into the line and recomputes it.
func (s *Session) UpdateLine(id string, patch cart.Patch) (cart.Line, error) {
	if s.state == StateSubmitted {
		return cart.Line{}, ErrSessionClosed
	}
	line, err := s.cart.Update(id, patch)
	if err != nil {
		return cart.Line{}, err
	}
	s.settle()
	return line, nil
}

func (s *Session) RemoveLine(id string) error {
	if s.state == StateSubmitted {
		return ErrSessionClosed
	}
	if err := s.cart.Remove(id); err != nil {
		return err
	}
	s.settle()
	return nil
}

// AddPayment records a payment. Payments without a currency are taken to be
// in the sale currency.
func (s *Session) AddPayment(entry PaymentEntry) (PaymentEntry, error) {
	if s.state == StateSubmitted {
		return PaymentEntry{}, ErrSessionClosed
	}
	if entry.Currency == "" {
		entry.Currency = s.header.Currency
	}
	if entry.Currency != s.header.Currency {
		if _, err := s.converter.Convert(entry.Amount, entry.Currency, s.header.Currency, s.rates); err != nil {
			return PaymentEntry{}, err
		}
	}
	added, err := s.payments.Add(entry)
	if err != nil {
		return PaymentEntry{}, err
	}
	s.settle()
	return added, nil
}

func (s *Session) RemovePayment(id string) error {
	if s.state == StateSubmitted {
		return ErrSessionClosed
	}
	if err := s.payments.Remove(id); err != nil {
		return err
	}
	s.settle()
	return nil
}

// Totals computes subtotal, discount, VAT, total, paid and remaining in the
// sale currency.
func (s *Session) Totals() (Totals, error) {
	cartTotals, err := s.cart.TotalsIn(s.header.Currency, s.converter, s.rates)
	if err != nil {
		return Totals{}, err
	}
	paid, err := s.payments.Paid(s.header.Currency, s.converter, s.rates)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		Totals:    cartTotals,
		Paid:      paid,
		Remaining: cartTotals.Total.Sub(paid),
	}, nil
}

// CanSubmit is true when the cart is non-empty and payments balance the total.
func (s *Session) CanSubmit() bool {
	return s.state == StateBalanced
}

// Reset discards lines and payments on explicit user request.
func (s *Session) Reset() error {
	if s.state == StateSubmitted {
		return ErrSessionClosed
	}
	s.cart.Clear()
	s.payments.Clear()
	s.state = StateEmpty
	return nil
}

// Submit hands the balanced sale to submitter. On failure the session stays
// balanced with its lines and payments intact.
func (s *Session) Submit(ctx context.Context, submitter Submitter) (Receipt, error) {
	if s.state == StateSubmitted {
		return Receipt{}, ErrSessionClosed
	}
	if !s.CanSubmit() {
		return Receipt{}, ErrNotBalanced
	}
	totals, err := s.Totals()
	if err != nil {
		return Receipt{}, err
	}
	sub := Submission{
		SessionID: s.id,
		Header:    s.header,
		Items:     s.cart.Lines(),
		Payments:  s.payments.Entries(),
		Totals:    totals,
	}
	receipt, err := submitter.SubmitSale(ctx, sub)
	if err != nil {
		return Receipt{}, &SubmissionError{Err: err}
	}
	if receipt.SubmittedAt.IsZero() {
		receipt.SubmittedAt = s.now().UTC()
	}
	s.cart.Clear()
	s.payments.Clear()
	s.state = StateSubmitted
	s.receipt = &receipt
	return receipt, nil
}

// Snapshot returns a copy of the session for presentation.
func (s *Session) Snapshot() (Snapshot, error) {
	totals, err := s.Totals()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:        s.id,
		Header:    s.header,
		State:     s.state,
		Lines:     s.cart.Lines(),
		Payments:  s.payments.Entries(),
		Totals:    totals,
		CanSubmit: s.CanSubmit(),
		Receipt:   s.receipt,
		OpenedAt:  s.openedAt,
	}, nil
}

func (s *Session) settle() {
	if s.state == StateSubmitted {
		return
	}
	if s.cart.Len() == 0 && s.payments.Len() == 0 {
		s.state = StateEmpty
		return
	}
	s.state = StateInProgress
	if s.cart.Len() == 0 {
		return
	}
	totals, err := s.Totals()
	if err != nil {
		return
	}
	if balanced(totals.Remaining, s.tolerance) {
		s.state = StateBalanced
	}
}

func balanced(remaining, tolerance decimal.Decimal) bool {
	return remaining.IsZero() || remaining.Abs().LessThan(tolerance)
}
