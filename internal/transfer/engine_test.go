package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memDirectory map[AccountRef]Account

func (d memDirectory) Account(_ context.Context, ref AccountRef) (Account, error) {
	acc, ok := d[ref]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

type memLedger struct {
	mu     sync.Mutex
	posted []Movement
	failOn func(Movement) error
}

func (l *memLedger) Post(_ context.Context, m Movement) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOn != nil {
		if err := l.failOn(m); err != nil {
			return "", err
		}
	}
	l.posted = append(l.posted, m)
	return string(m.Direction) + "-1", nil
}

type memRetry struct {
	scheduled []Movement
	err       error
}

func (r *memRetry) ScheduleDepositRetry(_ context.Context, m Movement) error {
	if r.err != nil {
		return r.err
	}
	r.scheduled = append(r.scheduled, m)
	return nil
}

var (
	bankTRY = Account{ID: "B1", Kind: AccountBank, Name: "Ziraat TRY", Currency: fx.TRY}
	bankUSD = Account{ID: "B2", Kind: AccountBank, Name: "Garanti USD", Currency: fx.USD}
	posTRY  = Account{ID: "P1", Kind: AccountPOS, Name: "Store POS", Currency: fx.TRY}
)

func directory() memDirectory {
	return memDirectory{bankTRY.Ref(): bankTRY, bankUSD.Ref(): bankUSD, posTRY.Ref(): posTRY}
}

func newTestEngine(ledger Ledger, retry RetryScheduler) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rates := fx.StaticRates(fx.RateSet{USDTRY: dec("32"), EURTRY: dec("35")})
	e := NewEngine(directory(), ledger, rates, fx.NewConverter(fx.DefaultPolicy()), retry, logger)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	e.newID = func() string { return "tr-1" }
	return e
}

func TestPlanWithoutConversion(t *testing.T) {
	e := newTestEngine(&memLedger{}, nil)
	pair, err := e.Plan(bankTRY, posTRY, dec("500"), true, fx.RateSet{})
	require.NoError(t, err)

	assert.True(t, pair.Withdrawal.Emerging.Equal(dec("500")))
	assert.True(t, pair.Withdrawal.Entering.IsZero())
	assert.True(t, pair.Deposit.Entering.Equal(dec("500")))
	assert.True(t, pair.Deposit.Emerging.IsZero())
	assert.Nil(t, pair.Rate)

	assert.Equal(t, OutgoingVirement, pair.Withdrawal.Type)
	assert.Equal(t, InGoingVirement, pair.Deposit.Type)
	assert.Equal(t, DirectionOut, pair.Withdrawal.Direction)
	assert.Equal(t, DirectionIn, pair.Deposit.Direction)
	assert.Equal(t, "Transfer from Ziraat TRY to Store POS", pair.Withdrawal.Description)
	assert.Equal(t, pair.Withdrawal.Description, pair.Deposit.Description)
	assert.Equal(t, pair.Withdrawal.TransferID, pair.Deposit.TransferID)
}

func TestPlanWithConversion(t *testing.T) {
	e := newTestEngine(&memLedger{}, nil)
	pair, err := e.Plan(bankUSD, bankTRY, dec("100"), true, fx.RateSet{USDTRY: dec("32")})
	require.NoError(t, err)

	assert.True(t, pair.Withdrawal.Emerging.Equal(dec("100")))
	assert.Equal(t, fx.USD, pair.Withdrawal.Currency)
	assert.True(t, pair.Deposit.Entering.Equal(dec("3200")), "deposit %s", pair.Deposit.Entering)
	assert.Equal(t, fx.TRY, pair.Deposit.Currency)
	require.NotNil(t, pair.Rate)
	assert.True(t, pair.Rate.Equal(dec("32")))
}

func TestPlanConversionDisabledKeepsAmount(t *testing.T) {
	e := newTestEngine(&memLedger{}, nil)
	pair, err := e.Plan(bankUSD, bankTRY, dec("100"), false, fx.RateSet{USDTRY: dec("32")})
	require.NoError(t, err)
	assert.True(t, pair.Deposit.Entering.Equal(dec("100")))
}

func TestPlanValidation(t *testing.T) {
	e := newTestEngine(&memLedger{}, nil)
	_, err := e.Plan(bankTRY, bankTRY, dec("1"), false, fx.RateSet{})
	assert.ErrorIs(t, err, ErrSameAccount)
	_, err = e.Plan(bankTRY, posTRY, dec("0"), false, fx.RateSet{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = e.Plan(bankTRY, posTRY, dec("-5"), false, fx.RateSet{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = e.Plan(bankUSD, bankTRY, dec("5"), true, fx.RateSet{})
	assert.ErrorIs(t, err, fx.ErrMissingExchangeRate)
}

func TestPlanSameIDDifferentKindIsAllowed(t *testing.T) {
	e := newTestEngine(&memLedger{}, nil)
	pos := Account{ID: "B1", Kind: AccountPOS, Currency: fx.TRY}
	_, err := e.Plan(bankTRY, pos, dec("1"), false, fx.RateSet{})
	assert.NoError(t, err)
}

func TestExecutePostsBothLegs(t *testing.T) {
	ledger := &memLedger{}
	e := newTestEngine(ledger, nil)
	res, err := e.Execute(context.Background(), Request{
		Source:           bankUSD.Ref(),
		Target:           bankTRY.Ref(),
		Amount:           dec("100"),
		EnableConversion: true,
	})
	require.NoError(t, err)
	require.Len(t, ledger.posted, 2)
	assert.Equal(t, OutgoingVirement, ledger.posted[0].Type, "withdrawal is posted first")
	assert.Equal(t, InGoingVirement, ledger.posted[1].Type)
	assert.Equal(t, "tr-1", res.TransferID)
	assert.Equal(t, "OUT-1", res.Withdrawal.ID)
	assert.Equal(t, "IN-1", res.Deposit.ID)
	assert.True(t, res.Deposit.Entering.Equal(dec("3200")))
}

func TestExecuteUnknownAccount(t *testing.T) {
	ledger := &memLedger{}
	e := newTestEngine(ledger, nil)
	_, err := e.Execute(context.Background(), Request{
		Source: bankTRY.Ref(),
		Target: AccountRef{ID: "nope", Kind: AccountBank},
		Amount: dec("1"),
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Empty(t, ledger.posted)
}

func TestExecuteWithdrawalFailurePostsNothing(t *testing.T) {
	ledger := &memLedger{failOn: func(m Movement) error {
		if m.Direction == DirectionOut {
			return errors.New("bank api down")
		}
		return nil
	}}
	e := newTestEngine(ledger, nil)
	_, err := e.Execute(context.Background(), Request{Source: bankTRY.Ref(), Target: posTRY.Ref(), Amount: dec("10")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartialTransfer)
	assert.Empty(t, ledger.posted)
}

func TestExecutePartialTransfer(t *testing.T) {
	ledger := &memLedger{failOn: func(m Movement) error {
		if m.Direction == DirectionIn {
			return errors.New("pos api down")
		}
		return nil
	}}
	retry := &memRetry{}
	e := newTestEngine(ledger, retry)
	_, err := e.Execute(context.Background(), Request{Source: bankTRY.Ref(), Target: posTRY.Ref(), Amount: dec("250")})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialTransfer)
	var partial *PartialTransferError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "OUT-1", partial.Withdrawal.ID)
	assert.True(t, partial.Deposit.Entering.Equal(dec("250")))
	assert.True(t, partial.RetryScheduled)

	require.Len(t, ledger.posted, 1, "withdrawal stays posted")
	require.Len(t, retry.scheduled, 1)
	assert.Equal(t, InGoingVirement, retry.scheduled[0].Type)
}

func TestExecutePartialTransferRetryUnavailable(t *testing.T) {
	ledger := &memLedger{failOn: func(m Movement) error {
		if m.Direction == DirectionIn {
			return errors.New("pos api down")
		}
		return nil
	}}
	e := newTestEngine(ledger, &memRetry{err: errors.New("redis down")})
	_, err := e.Execute(context.Background(), Request{Source: bankTRY.Ref(), Target: posTRY.Ref(), Amount: dec("250")})
	var partial *PartialTransferError
	require.ErrorAs(t, err, &partial)
	assert.False(t, partial.RetryScheduled)
}

type countingRecorder map[string]int

func (r countingRecorder) TransferCompleted(outcome string) {
	r[outcome]++
}

func TestExecuteRecordsOutcomes(t *testing.T) {
	ledger := &memLedger{}
	rec := countingRecorder{}
	e := newTestEngine(ledger, nil).WithMetrics(rec)
	ctx := context.Background()

	_, err := e.Execute(ctx, Request{Source: bankTRY.Ref(), Target: posTRY.Ref(), Amount: dec("10")})
	require.NoError(t, err)
	_, err = e.Execute(ctx, Request{Source: bankTRY.Ref(), Target: bankTRY.Ref(), Amount: dec("10")})
	require.Error(t, err)
	ledger.failOn = func(m Movement) error {
		if m.Direction == DirectionIn {
			return errors.New("down")
		}
		return nil
	}
	_, err = e.Execute(ctx, Request{Source: bankTRY.Ref(), Target: posTRY.Ref(), Amount: dec("10")})
	require.Error(t, err)

	assert.Equal(t, countingRecorder{"ok": 1, "rejected": 1, "partial": 1}, rec)
}
