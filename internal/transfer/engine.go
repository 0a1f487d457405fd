// Package transfer moves money between bank and POS accounts as a linked
// withdrawal and deposit pair.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

var (
	ErrSameAccount     = errors.New("transfer: source and target must differ")
	ErrInvalidAmount   = errors.New("transfer: amount must be positive")
	ErrAccountNotFound = errors.New("transfer: account not found")
	ErrPartialTransfer = errors.New("transfer: deposit failed after withdrawal was posted")
)

// PartialTransferError reports a transfer whose withdrawal was posted but whose
// deposit was not. Nothing is rolled back.
type PartialTransferError struct {
	Withdrawal Posted
	Deposit    Movement
	// RetryScheduled is true when the deposit leg was queued for retry.
	RetryScheduled bool
	Err            error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("transfer %s: deposit to %s failed after withdrawal %s: %v",
		e.Withdrawal.TransferID, e.Deposit.AccountID, e.Withdrawal.ID, e.Err)
}

func (e *PartialTransferError) Unwrap() []error {
	return []error{ErrPartialTransfer, e.Err}
}

// Ledger accepts movements against bank and POS accounts.
type Ledger interface {
	Post(ctx context.Context, m Movement) (string, error)
}

// AccountDirectory resolves account references.
type AccountDirectory interface {
	Account(ctx context.Context, ref AccountRef) (Account, error)
}

// RetryScheduler queues a failed deposit leg for another attempt.
type RetryScheduler interface {
	ScheduleDepositRetry(ctx context.Context, m Movement) error
}

// Recorder receives transfer outcomes for metrics.
type Recorder interface {
	TransferCompleted(outcome string)
}

// Engine plans and executes transfers.
type Engine struct {
	accounts  AccountDirectory
	ledger    Ledger
	rates     fx.RateProvider
	converter *fx.Converter
	retry     RetryScheduler
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	metrics   Recorder
}

// NewEngine wires an engine. retry may be nil.
func NewEngine(accounts AccountDirectory, ledger Ledger, rates fx.RateProvider, converter *fx.Converter, retry RetryScheduler, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if converter == nil {
		converter = fx.NewConverter(fx.DefaultPolicy())
	}
	return &Engine{
		accounts:  accounts,
		ledger:    ledger,
		rates:     rates,
		converter: converter,
		retry:     retry,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithMetrics attaches an outcome recorder.
func (e *Engine) WithMetrics(m Recorder) *Engine {
	e.metrics = m
	return e
}

func (e *Engine) record(outcome string) {
	if e.metrics != nil {
		e.metrics.TransferCompleted(outcome)
	}
}

// Description is shared by both legs of a transfer.
func Description(source, target Account) string {
	return fmt.Sprintf("Transfer from %s to %s", source.Label(), target.Label())
}

// Plan builds the withdrawal and deposit for moving amount from source to
// target. The deposit is converted only when enableConversion is set and the
// currencies differ; otherwise both legs carry amount unchanged.
func (e *Engine) Plan(source, target Account, amount decimal.Decimal, enableConversion bool, rates fx.RateSet) (Pair, error) {
	if source.Ref() == target.Ref() {
		return Pair{}, ErrSameAccount
	}
	if !amount.IsPositive() {
		return Pair{}, ErrInvalidAmount
	}
	deposited := amount
	var rate *decimal.Decimal
	if enableConversion && source.Currency != target.Currency {
		converted, err := e.converter.Convert(amount, source.Currency, target.Currency, rates)
		if err != nil {
			return Pair{}, err
		}
		deposited = converted
		r := converted.Div(amount)
		rate = &r
	}
	id := e.newID()
	at := e.now().UTC()
	desc := Description(source, target)
	return Pair{
		Withdrawal: Movement{
			TransferID:   id,
			AccountID:    source.ID,
			AccountKind:  source.Kind,
			Entering:     decimal.Zero,
			Emerging:     amount,
			Currency:     source.Currency,
			Description:  desc,
			Direction:    DirectionOut,
			Type:         OutgoingVirement,
			DocumentType: DocumentVirement,
			Date:         at,
		},
		Deposit: Movement{
			TransferID:   id,
			AccountID:    target.ID,
			AccountKind:  target.Kind,
			Entering:     deposited,
			Emerging:     decimal.Zero,
			Currency:     target.Currency,
			Description:  desc,
			Direction:    DirectionIn,
			Type:         InGoingVirement,
			DocumentType: DocumentVirement,
			Date:         at,
		},
		Rate: rate,
	}, nil
}

// Execute resolves both accounts, plans the transfer and posts the withdrawal
// followed by the deposit.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	res, err := e.execute(ctx, req)
	var partial *PartialTransferError
	switch {
	case err == nil:
		e.record("ok")
	case errors.As(err, &partial):
		e.record("partial")
	case errors.Is(err, ErrSameAccount), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrAccountNotFound), errors.Is(err, fx.ErrMissingExchangeRate):
		e.record("rejected")
	default:
		e.record("failed")
	}
	return res, err
}

func (e *Engine) execute(ctx context.Context, req Request) (Result, error) {
	if req.Source == req.Target {
		return Result{}, ErrSameAccount
	}
	if !req.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	source, err := e.accounts.Account(ctx, req.Source)
	if err != nil {
		return Result{}, fmt.Errorf("resolve source %s: %w", req.Source, err)
	}
	target, err := e.accounts.Account(ctx, req.Target)
	if err != nil {
		return Result{}, fmt.Errorf("resolve target %s: %w", req.Target, err)
	}

	var rates fx.RateSet
	if req.EnableConversion && source.Currency != target.Currency && e.rates != nil {
		rates, err = e.rates.Rates(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("load exchange rates: %w", err)
		}
	}
	pair, err := e.Plan(source, target, req.Amount, req.EnableConversion, rates)
	if err != nil {
		return Result{}, err
	}

	withdrawalID, err := e.ledger.Post(ctx, pair.Withdrawal)
	if err != nil {
		return Result{}, fmt.Errorf("post withdrawal: %w", err)
	}
	withdrawal := Posted{Movement: pair.Withdrawal, ID: withdrawalID}

	depositID, err := e.ledger.Post(ctx, pair.Deposit)
	if err != nil {
		partial := &PartialTransferError{Withdrawal: withdrawal, Deposit: pair.Deposit, Err: err}
		e.logger.Error("transfer deposit failed",
			slog.String("transfer_id", pair.Withdrawal.TransferID),
			slog.String("withdrawal_id", withdrawalID),
			slog.String("target", req.Target.String()),
			slog.Any("error", err),
		)
		if e.retry != nil {
			if rerr := e.retry.ScheduleDepositRetry(ctx, pair.Deposit); rerr != nil {
				e.logger.Error("schedule deposit retry", slog.Any("error", rerr))
			} else {
				partial.RetryScheduled = true
			}
		}
		return Result{}, partial
	}

	e.logger.Info("transfer posted",
		slog.String("transfer_id", pair.Withdrawal.TransferID),
		slog.String("source", req.Source.String()),
		slog.String("target", req.Target.String()),
		slog.String("amount", req.Amount.String()),
	)
	return Result{
		TransferID: pair.Withdrawal.TransferID,
		Withdrawal: withdrawal,
		Deposit:    Posted{Movement: pair.Deposit, ID: depositID},
	}, nil
}
