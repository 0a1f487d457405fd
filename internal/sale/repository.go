package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// Repository persists submitted sales in PostgreSQL. It satisfies Submitter.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// SubmitSale writes the header, lines and payments in one transaction.
func (r *Repository) SubmitSale(ctx context.Context, sub Submission) (Receipt, error) {
	if r == nil || r.pool == nil {
		return Receipt{}, fmt.Errorf("sale repository not initialised")
	}
	saleID := uuid.NewString()
	submittedAt := r.now().UTC()
	var docNumber string

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('pos_sale_doc_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("next doc number: %w", err)
		}
		docNumber = FormatDocNumber(submittedAt, seq)

		_, err := tx.Exec(ctx, `
INSERT INTO pos_sales (id, doc_number, session_id, customer_code, branch_code, warehouse_id,
	price_list_id, currency, subtotal, total_discount, total_vat, total, paid, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			saleID, docNumber, sub.SessionID, sub.Header.CustomerCode, sub.Header.BranchCode,
			sub.Header.WarehouseID, sub.Header.PriceListID, string(sub.Header.Currency),
			sub.Totals.Subtotal, sub.Totals.TotalDiscount, sub.Totals.TotalVat, sub.Totals.Total,
			sub.Totals.Paid, submittedAt,
		)
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		batch := &pgx.Batch{}
		const lineQuery = `
INSERT INTO pos_sale_lines (sale_id, line_no, product_id, product_code, product_name, price_list_id,
	quantity, unit_price, discount_rate, discount_amount, vat_rate, vat_amount, total_amount, currency)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
		for i, l := range sub.Items {
			batch.Queue(lineQuery, saleID, i+1, l.ProductID, l.ProductCode, l.ProductName, l.PriceListID,
				l.Quantity, l.UnitPrice, l.DiscountRate, l.DiscountAmount, l.VatRate, l.VatAmount,
				l.TotalAmount, string(l.Currency))
		}
		const paymentQuery = `
INSERT INTO pos_sale_payments (sale_id, seq, method, amount, currency, account_id, description)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`
		for i, p := range sub.Payments {
			batch.Queue(paymentQuery, saleID, i+1, string(p.Method), p.Amount, string(p.Currency),
				p.AccountID, p.Description)
		}
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert sale detail: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{SaleID: saleID, DocNumber: docNumber, SubmittedAt: submittedAt}, nil
}

// FormatDocNumber renders POS-YYYYMMDD-NNNNNN.
func FormatDocNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("POS-%s-%06d", at.UTC().Format("20060102"), seq)
}
