package sale

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	"github.com/odyssey-erp/odyssey-pos/internal/pricing"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type fakeCatalog struct {
	products map[string]pricing.Product
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (pricing.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return pricing.Product{}, pricing.ErrProductNotFound
	}
	return p, nil
}

func (c *fakeCatalog) SearchProducts(_ context.Context, query string) ([]pricing.Product, error) {
	var out []pricing.Product
	for _, p := range c.products {
		if p.Code == query || p.Name == query {
			out = append(out, p)
		}
	}
	return out, nil
}

type memIdempotency struct {
	mu        sync.Mutex
	keys      map[string]string
	deleteErr error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]string)}
}

func (m *memIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = ""
	return nil
}

func (m *memIdempotency) Complete(_ context.Context, key, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = reference
	return nil
}

func (m *memIdempotency) Reference(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := m.keys[key]
	return ref, ref != "", nil
}

func (m *memIdempotency) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.keys, key)
	return nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]pricing.Product{
		"P-1": {
			ID:   "P-1",
			Code: "SKU-1",
			Name: "Olive oil",
			PriceLists: []pricing.PriceListEntry{
				{PriceListID: "retail", Price: dec("100"), VatRate: dec("18"), PriceList: pricing.PriceList{Currency: fx.TRY}},
			},
			Warehouses: []pricing.WarehouseStock{{WarehouseID: "W1", Quantity: dec("7")}},
		},
		"P-2": {
			ID:   "P-2",
			Code: "SKU-2",
			Name: "Imported tea",
			PriceLists: []pricing.PriceListEntry{
				{PriceListID: "retail", Price: dec("10"), VatRate: dec("0"), PriceList: pricing.PriceList{Currency: fx.USD}},
			},
		},
		"P-3": {ID: "P-3", Code: "SKU-3", Name: "Unpriced"},
	}}
}

func newTestService(submitter Submitter, idem IdempotencyGuard) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rates := fx.StaticRates(fx.RateSet{USDTRY: dec("32"), EURTRY: dec("35")})
	return NewService(NewRegistry(0), testCatalog(), rates, submitter, idem, ServiceConfig{Tolerance: dec("0.01")}, logger)
}

func openRequest() OpenSessionRequest {
	return OpenSessionRequest{CustomerCode: "C-1", BranchCode: "B-1", WarehouseID: "W1", PriceListID: "retail", Currency: "try"}
}

func TestServiceAddProductMergesAndPrices(t *testing.T) {
	svc := newTestService(&stubSubmitter{}, nil)
	ctx := context.Background()
	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	assert.Equal(t, fx.TRY, snap.Header.Currency)
	assert.Equal(t, StateEmpty, snap.State)

	_, err = svc.AddProduct(ctx, snap.ID, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)
	snap, err = svc.AddProduct(ctx, snap.ID, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.True(t, snap.Lines[0].TotalAmount.Equal(dec("236")))
	require.NotNil(t, snap.Lines[0].AvailableQuantity)
	assert.True(t, snap.Lines[0].AvailableQuantity.Equal(dec("7")))
	assert.Equal(t, StateInProgress, snap.State)
}

func TestServiceAddProductErrors(t *testing.T) {
	svc := newTestService(&stubSubmitter{}, nil)
	ctx := context.Background()
	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)

	_, err = svc.AddProduct(ctx, snap.ID, AddLineRequest{ProductID: "P-3"})
	assert.ErrorIs(t, err, pricing.ErrNoPriceDefined)
	_, err = svc.AddProduct(ctx, snap.ID, AddLineRequest{ProductID: "missing"})
	assert.ErrorIs(t, err, pricing.ErrProductNotFound)
	_, err = svc.AddProduct(ctx, "nope", AddLineRequest{ProductID: "P-1"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceForeignLineLoadsRates(t *testing.T) {
	svc := newTestService(&stubSubmitter{}, nil)
	ctx := context.Background()
	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)

	snap, err = svc.AddProduct(ctx, snap.ID, AddLineRequest{ProductID: "P-2"})
	require.NoError(t, err)
	assert.Equal(t, fx.USD, snap.Lines[0].Currency)
	assert.True(t, snap.Totals.Total.Equal(dec("320")), "total %s", snap.Totals.Total)
}

func TestServiceOpenRejectsUnsupportedCurrency(t *testing.T) {
	svc := newTestService(&stubSubmitter{}, nil)
	req := openRequest()
	req.Currency = "GBP"
	_, err := svc.Open(context.Background(), req)
	assert.ErrorIs(t, err, fx.ErrUnsupportedCurrency)
}

func TestServiceSubmitFlow(t *testing.T) {
	sub := &stubSubmitter{receipt: Receipt{SaleID: "sale-9"}}
	idem := newMemIdempotency()
	svc := newTestService(sub, idem)
	ctx := context.Background()

	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	id := snap.ID
	_, err = svc.AddProduct(ctx, id, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, id)
	assert.ErrorIs(t, err, ErrNotBalanced)

	_, err = svc.AddPayment(ctx, id, AddPaymentRequest{Method: "cash", Amount: dec("100")})
	require.NoError(t, err)
	snap, err = svc.AddPayment(ctx, id, AddPaymentRequest{Method: "card", Amount: dec("18")})
	require.NoError(t, err)
	assert.True(t, snap.CanSubmit)

	snap, err = svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
	require.NotNil(t, snap.Receipt)
	assert.Equal(t, "sale-9", snap.Receipt.SaleID)
	assert.Equal(t, "sale-9", idem.keys["sale-session:"+id])
	assert.Equal(t, 1, sub.calls)

	_, err = svc.Submit(ctx, id)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, 1, sub.calls)
}

func TestServiceSubmitFailureReleasesKey(t *testing.T) {
	sub := &stubSubmitter{err: errors.New("upstream down")}
	idem := newMemIdempotency()
	svc := newTestService(sub, idem)
	ctx := context.Background()

	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	id := snap.ID
	_, err = svc.AddProduct(ctx, id, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)
	_, err = svc.AddPayment(ctx, id, AddPaymentRequest{Method: "cash", Amount: dec("118")})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, id)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Empty(t, idem.keys)

	snap, err = svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateBalanced, snap.State)
	assert.Len(t, snap.Lines, 1)

	sub.err = nil
	sub.receipt = Receipt{SaleID: "sale-retry"}
	snap, err = svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
}

func TestServiceSubmitClaimedElsewhere(t *testing.T) {
	sub := &stubSubmitter{}
	idem := newMemIdempotency()
	svc := newTestService(sub, idem)
	ctx := context.Background()

	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	id := snap.ID
	_, err = svc.AddProduct(ctx, id, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)
	_, err = svc.AddPayment(ctx, id, AddPaymentRequest{Method: "cash", Amount: dec("118")})
	require.NoError(t, err)

	require.NoError(t, idem.CheckAndInsert(ctx, "sale-session:"+id, idempotencyModule))
	require.NoError(t, idem.Complete(ctx, "sale-session:"+id, "sale-earlier"))
	_, err = svc.Submit(ctx, id)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Zero(t, sub.calls)
}

func TestServiceSubmitRetriesAfterKeyReleaseFails(t *testing.T) {
	sub := &stubSubmitter{err: errors.New("upstream down")}
	idem := newMemIdempotency()
	idem.deleteErr = errors.New("db unavailable")
	svc := newTestService(sub, idem)
	ctx := context.Background()

	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	id := snap.ID
	_, err = svc.AddProduct(ctx, id, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)
	_, err = svc.AddPayment(ctx, id, AddPaymentRequest{Method: "cash", Amount: dec("118")})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, id)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	require.Contains(t, idem.keys, "sale-session:"+id, "key stays claimed when release fails")

	sub.err = nil
	sub.receipt = Receipt{SaleID: "sale-retry"}
	snap, err = svc.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Equal(t, 2, sub.calls)
	assert.Equal(t, "sale-retry", idem.keys["sale-session:"+id])
}

func TestServiceResetAndDiscard(t *testing.T) {
	svc := newTestService(&stubSubmitter{}, nil)
	ctx := context.Background()
	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	id := snap.ID
	_, err = svc.AddProduct(ctx, id, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)

	snap, err = svc.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.Lines)

	require.NoError(t, svc.Discard(ctx, id))
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceUpdateAndRemove(t *testing.T) {
	svc := newTestService(&stubSubmitter{}, nil)
	ctx := context.Background()
	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	id := snap.ID
	snap, err = svc.AddProduct(ctx, id, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)
	lineID := snap.Lines[0].ID

	snap, err = svc.UpdateLine(ctx, id, lineID, UpdateLineRequest{Quantity: ptr(2), DiscountRate: ptr(dec("10"))})
	require.NoError(t, err)
	assert.True(t, snap.Totals.Total.Equal(dec("212.4")))

	snap, err = svc.AddPayment(ctx, id, AddPaymentRequest{Method: "cash", Amount: dec("12.4")})
	require.NoError(t, err)
	paymentID := snap.Payments[0].ID
	snap, err = svc.RemovePayment(ctx, id, paymentID)
	require.NoError(t, err)
	assert.Empty(t, snap.Payments)

	snap, err = svc.RemoveLine(ctx, id, lineID)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, snap.State)
}

type countingRecorder struct {
	outcomes []string
}

func (r *countingRecorder) SaleSubmitted(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestServiceRecordsSubmitOutcomes(t *testing.T) {
	sub := &stubSubmitter{err: errors.New("down")}
	rec := &countingRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewRegistry(0), testCatalog(), nil, sub, newMemIdempotency(),
		ServiceConfig{Tolerance: dec("0.01"), Metrics: rec}, logger)
	ctx := context.Background()

	snap, err := svc.Open(ctx, openRequest())
	require.NoError(t, err)
	_, err = svc.AddProduct(ctx, snap.ID, AddLineRequest{ProductID: "P-1"})
	require.NoError(t, err)
	_, err = svc.AddPayment(ctx, snap.ID, AddPaymentRequest{Method: "cash", Amount: dec("118")})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, snap.ID)
	require.Error(t, err)
	sub.err = nil
	_, err = svc.Submit(ctx, snap.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"failed", "ok"}, rec.outcomes)
}
