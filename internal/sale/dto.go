package sale

import "github.com/shopspring/decimal"

type OpenSessionRequest struct {
	CustomerCode string `json:"customer_code" validate:"required,max=64"`
	BranchCode   string `json:"branch_code" validate:"required,max=64"`
	WarehouseID  string `json:"warehouse_id" validate:"required,max=64"`
	PriceListID  string `json:"price_list_id" validate:"required,max=64"`
	Currency     string `json:"currency" validate:"required,len=3"`
}

type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
}

type UpdateLineRequest struct {
	Quantity     *int             `json:"quantity,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
	VatRate      *decimal.Decimal `json:"vat_rate,omitempty"`
}

type AddPaymentRequest struct {
	Method      string          `json:"method" validate:"required,oneof=cash card bank openAccount"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"account_id" validate:"max=64"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	Description string          `json:"description" validate:"max=255"`
}
