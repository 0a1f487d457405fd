package sale

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

type handlerFixture struct {
	router    http.Handler
	submitter *stubSubmitter
}

func newHandlerFixture() *handlerFixture {
	sub := &stubSubmitter{receipt: Receipt{SaleID: "sale-1"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	MountRoutes(r, Deps{
		Registry:  NewRegistry(0),
		Catalog:   testCatalog(),
		Rates:     fx.StaticRates(fx.RateSet{USDTRY: dec("32"), EURTRY: dec("35")}),
		Submitter: sub,
		Config:    ServiceConfig{Tolerance: dec("0.01")},
		Logger:    logger,
	})
	return &handlerFixture{router: r, submitter: sub}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) open(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/sales/sessions",
		`{"customer_code":"C-1","branch_code":"B-1","warehouse_id":"W1","price_list_id":"retail","currency":"TRY"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	return snap.ID
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) Snapshot {
	t.Helper()
	var snap Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	return snap
}

func TestHandlerSaleLifecycle(t *testing.T) {
	f := newHandlerFixture()
	id := f.open(t)
	base := "/sales/sessions/" + id

	rec := f.do(t, http.MethodPost, base+"/lines", `{"product_id":"P-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeSnapshot(t, rec)
	require.Len(t, snap.Lines, 1)
	lineID := snap.Lines[0].ID

	rec = f.do(t, http.MethodPatch, base+"/lines/"+lineID, `{"quantity":2,"discount_rate":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = decodeSnapshot(t, rec)
	assert.True(t, snap.Totals.Total.Equal(dec("212.4")))

	rec = f.do(t, http.MethodPost, base+"/submit", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/payments", `{"method":"cash","amount":"212.4"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = decodeSnapshot(t, rec)
	assert.True(t, snap.CanSubmit)

	rec = f.do(t, http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap = decodeSnapshot(t, rec)
	assert.Equal(t, StateSubmitted, snap.State)
	assert.Equal(t, 1, f.submitter.calls)

	rec = f.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newHandlerFixture()
	id := f.open(t)
	base := "/sales/sessions/" + id

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"no price defined", http.MethodPost, base + "/lines", `{"product_id":"P-3"}`, http.StatusUnprocessableEntity},
		{"unknown product", http.MethodPost, base + "/lines", `{"product_id":"nope"}`, http.StatusNotFound},
		{"missing product id", http.MethodPost, base + "/lines", `{}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, base + "/lines", `{"sku":"x"}`, http.StatusBadRequest},
		{"bad method", http.MethodPost, base + "/payments", `{"method":"barter","amount":"1"}`, http.StatusBadRequest},
		{"zero amount", http.MethodPost, base + "/payments", `{"method":"cash","amount":"0"}`, http.StatusBadRequest},
		{"unknown line", http.MethodDelete, base + "/lines/nope", "", http.StatusNotFound},
		{"unknown payment", http.MethodDelete, base + "/payments/nope", "", http.StatusNotFound},
		{"unknown session", http.MethodGet, "/sales/sessions/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerSubmitFailureIsBadGateway(t *testing.T) {
	f := newHandlerFixture()
	f.submitter.err = errors.New("sales endpoint status 500")
	id := f.open(t)
	base := "/sales/sessions/" + id

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/lines", `{"product_id":"P-1"}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/payments", `{"method":"card","amount":"118"}`).Code)

	rec := f.do(t, http.MethodPost, base+"/submit", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodGet, base, "")
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, StateBalanced, snap.State)
}

func TestHandlerOpenValidation(t *testing.T) {
	f := newHandlerFixture()
	rec := f.do(t, http.MethodPost, "/sales/sessions", `{"customer_code":"C-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/sales/sessions",
		`{"customer_code":"C-1","branch_code":"B-1","warehouse_id":"W1","price_list_id":"retail","currency":"GBP"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSearchProducts(t *testing.T) {
	f := newHandlerFixture()
	rec := f.do(t, http.MethodGet, "/sales/products?search=SKU-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Olive oil")

	rec = f.do(t, http.MethodGet, "/sales/products", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerReset(t *testing.T) {
	f := newHandlerFixture()
	id := f.open(t)
	base := "/sales/sessions/" + id
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/lines", `{"product_id":"P-1"}`).Code)

	rec := f.do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, StateEmpty, snap.State)
}
