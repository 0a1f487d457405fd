package sale

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteSubmitter posts balanced sales to an upstream sales endpoint.
type RemoteSubmitter struct {
	endpoint string
	client   *http.Client
}

func NewRemoteSubmitter(endpoint string) *RemoteSubmitter {
	return &RemoteSubmitter{endpoint: endpoint, client: &http.Client{Timeout: 15 * time.Second}}
}

type remoteItem struct {
	ProductID      string          `json:"productId"`
	ProductCode    string          `json:"productCode"`
	PriceListID    string          `json:"priceListId"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DiscountRate   decimal.Decimal `json:"discountRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	VatRate        decimal.Decimal `json:"vatRate"`
	VatAmount      decimal.Decimal `json:"vatAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Currency       string          `json:"currency"`
}

type remotePayment struct {
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	AccountID   string          `json:"accountId,omitempty"`
	Description string          `json:"description,omitempty"`
}

type remoteTotals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	TotalVat      decimal.Decimal `json:"totalVat"`
	Total         decimal.Decimal `json:"total"`
	Paid          decimal.Decimal `json:"paid"`
}

type remoteSale struct {
	ClientReference string          `json:"clientReference"`
	CustomerCode    string          `json:"customerCode"`
	BranchCode      string          `json:"branchCode"`
	WarehouseID     string          `json:"warehouseId"`
	PriceListID     string          `json:"priceListId"`
	Currency        string          `json:"currency"`
	Items           []remoteItem    `json:"items"`
	Payments        []remotePayment `json:"payments"`
	Totals          remoteTotals    `json:"totals"`
}

type remoteReceipt struct {
	ID        string `json:"id"`
	DocNumber string `json:"docNumber"`
}

func toRemote(sub Submission) remoteSale {
	out := remoteSale{
		ClientReference: sub.SessionID,
		CustomerCode:    sub.Header.CustomerCode,
		BranchCode:      sub.Header.BranchCode,
		WarehouseID:     sub.Header.WarehouseID,
		PriceListID:     sub.Header.PriceListID,
		Currency:        string(sub.Header.Currency),
		Items:           make([]remoteItem, 0, len(sub.Items)),
		Payments:        make([]remotePayment, 0, len(sub.Payments)),
		Totals: remoteTotals{
			Subtotal:      sub.Totals.Subtotal,
			TotalDiscount: sub.Totals.TotalDiscount,
			TotalVat:      sub.Totals.TotalVat,
			Total:         sub.Totals.Total,
			Paid:          sub.Totals.Paid,
		},
	}
	for _, l := range sub.Items {
		out.Items = append(out.Items, remoteItem{
			ProductID:      l.ProductID,
			ProductCode:    l.ProductCode,
			PriceListID:    l.PriceListID,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			DiscountRate:   l.DiscountRate,
			DiscountAmount: l.DiscountAmount,
			VatRate:        l.VatRate,
			VatAmount:      l.VatAmount,
			TotalAmount:    l.TotalAmount,
			Currency:       string(l.Currency),
		})
	}
	for _, p := range sub.Payments {
		out.Payments = append(out.Payments, remotePayment{
			Method:      string(p.Method),
			Amount:      p.Amount,
			Currency:    string(p.Currency),
			AccountID:   p.AccountID,
			Description: p.Description,
		})
	}
	return out
}

// SubmitSale posts the sale. Any non-2xx response is a failure.
func (s *RemoteSubmitter) SubmitSale(ctx context.Context, sub Submission) (Receipt, error) {
	body, err := json.Marshal(toRemote(sub))
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "sale-session:"+sub.SessionID)
	resp, err := s.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("post sale: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Receipt{}, fmt.Errorf("sales endpoint status %d: %s", resp.StatusCode, string(msg))
	}
	var out remoteReceipt
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return Receipt{}, fmt.Errorf("decode sale receipt: %w", err)
	}
	return Receipt{SaleID: out.ID, DocNumber: out.DocNumber}, nil
}
