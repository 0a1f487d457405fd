package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// PaymentMethod names how a payment was tendered.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodBank        PaymentMethod = "bank"
	PaymentMethodOpenAccount PaymentMethod = "openAccount"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBank, PaymentMethodOpenAccount:
		return true
	}
	return false
}

// PaymentEntry is one tendered amount. An empty Currency means the session
// currency.
type PaymentEntry struct {
	ID          string          `json:"id"`
	Method      PaymentMethod   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"account_id,omitempty"`
	Currency    fx.Currency     `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// State is the reconciliation status of a session.
type State string

const (
	StateEmpty      State = "EMPTY"
	StateInProgress State = "IN_PROGRESS"
	StateBalanced   State = "BALANCED"
	StateSubmitted  State = "SUBMITTED"
)

// Header identifies who the sale is for and where it is booked.
type Header struct {
	CustomerCode string      `json:"customer_code"`
	BranchCode   string      `json:"branch_code"`
	WarehouseID  string      `json:"warehouse_id"`
	PriceListID  string      `json:"price_list_id"`
	Currency     fx.Currency `json:"currency"`
}

// Totals is derived from the cart and payments; it is never persisted on its own.
type Totals struct {
	cart.Totals
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Receipt identifies the persisted sale returned by a successful submit.
type Receipt struct {
	SaleID      string    `json:"sale_id"`
	DocNumber   string    `json:"doc_number,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Submission is the payload handed to the persistence collaborator.
type Submission struct {
	SessionID string         `json:"session_id"`
	Header    Header         `json:"header"`
	Items     []cart.Line    `json:"items"`
	Payments  []PaymentEntry `json:"payments"`
	Totals    Totals         `json:"totals"`
}

// Snapshot is the externally visible view of a session.
type Snapshot struct {
	ID        string         `json:"id"`
	Header    Header         `json:"header"`
	State     State          `json:"state"`
	Lines     []cart.Line    `json:"lines"`
	Payments  []PaymentEntry `json:"payments"`
	Totals    Totals         `json:"totals"`
	CanSubmit bool           `json:"can_submit"`
	Receipt   *Receipt       `json:"receipt,omitempty"`
	OpenedAt  time.Time      `json:"opened_at"`
}
