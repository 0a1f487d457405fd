package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// AccountKind distinguishes bank accounts from POS (card terminal) accounts.
type AccountKind string

const (
	AccountBank AccountKind = "bank"
	AccountPOS  AccountKind = "pos"
)

func (k AccountKind) Valid() bool {
	return k == AccountBank || k == AccountPOS
}

// AccountRef identifies an account in a request.
type AccountRef struct {
	ID   string      `json:"id" validate:"required,max=64"`
	Kind AccountKind `json:"kind" validate:"required,oneof=bank pos"`
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

type Account struct {
	ID       string      `json:"id"`
	Kind     AccountKind `json:"kind"`
	Name     string      `json:"name"`
	Currency fx.Currency `json:"currency"`
}

func (a Account) Ref() AccountRef {
	return AccountRef{ID: a.ID, Kind: a.Kind}
}

// Label is the human name used in movement descriptions.
func (a Account) Label() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return a.ID
}

type Request struct {
	Source           AccountRef      `json:"source"`
	Target           AccountRef      `json:"target"`
	Amount           decimal.Decimal `json:"amount"`
	EnableConversion bool            `json:"enable_conversion"`
}

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

type MovementType string

const (
	OutgoingVirement MovementType = "OutgoingVirement"
	InGoingVirement  MovementType = "InGoingVirement"
)

// DocumentVirement is the document type stamped on both legs of a transfer.
const DocumentVirement = "Virement"

// Movement is a single ledger entry against one bank or POS account.
type Movement struct {
	TransferID   string          `json:"transfer_id"`
	AccountID    string          `json:"account_id"`
	AccountKind  AccountKind     `json:"account_kind"`
	Entering     decimal.Decimal `json:"entering"`
	Emerging     decimal.Decimal `json:"emerging"`
	Currency     fx.Currency     `json:"currency"`
	Description  string          `json:"description"`
	Direction    Direction       `json:"direction"`
	Type         MovementType    `json:"type"`
	DocumentType string          `json:"document_type"`
	Date         time.Time       `json:"date"`
}

// Pair is the planned withdrawal and deposit for one transfer.
type Pair struct {
	Withdrawal Movement         `json:"withdrawal"`
	Deposit    Movement         `json:"deposit"`
	Rate       *decimal.Decimal `json:"rate,omitempty"`
}

// Posted is a movement accepted by the ledger.
type Posted struct {
	Movement
	ID string `json:"id"`
}

type Result struct {
	TransferID string `json:"transfer_id"`
	Withdrawal Posted `json:"withdrawal"`
	Deposit    Posted `json:"deposit"`
}
