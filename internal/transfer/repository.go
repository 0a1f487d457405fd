package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// Repository stores accounts and movements in PostgreSQL. It satisfies both
// AccountDirectory and Ledger.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func tables(kind AccountKind) (accounts, movements string, err error) {
	switch kind {
	case AccountBank:
		return "bank_accounts", "bank_movements", nil
	case AccountPOS:
		return "pos_accounts", "pos_movements", nil
	}
	return "", "", fmt.Errorf("transfer: unknown account kind %q", kind)
}

// Account loads an account by reference.
func (r *Repository) Account(ctx context.Context, ref AccountRef) (Account, error) {
	accounts, _, err := tables(ref.Kind)
	if err != nil {
		return Account{}, err
	}
	var (
		acc      = Account{Kind: ref.Kind}
		currency string
	)
	query := fmt.Sprintf(`SELECT id, name, currency FROM %s WHERE id = $1`, accounts)
	if err := r.pool.QueryRow(ctx, query, ref.ID).Scan(&acc.ID, &acc.Name, &currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, ref)
		}
		return Account{}, err
	}
	acc.Currency, err = fx.ParseCurrency(currency)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", ref, err)
	}
	return acc, nil
}

// Post inserts one movement and returns its id. Re-posting the same leg of
// a transfer returns the existing row, so deposit retries are safe.
func (r *Repository) Post(ctx context.Context, m Movement) (string, error) {
	_, movements, err := tables(m.AccountKind)
	if err != nil {
		return "", err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (transfer_id, account_id, entering, emerging, currency, description,
	direction, movement_type, document_type, movement_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (transfer_id, direction) DO UPDATE SET transfer_id = EXCLUDED.transfer_id
RETURNING id::text`, movements)
	var id string
	err = r.pool.QueryRow(ctx, query,
		m.TransferID, m.AccountID, m.Entering, m.Emerging, string(m.Currency), m.Description,
		string(m.Direction), string(m.Type), m.DocumentType, m.Date,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", movements, err)
	}
	return id, nil
}
