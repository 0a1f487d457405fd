package sale

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/pricing"
)

// Handler serves the POS sale endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   pricing.Catalog
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catalog pricing.Catalog) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, catalog: catalog, validator: validator.New()}
}

// MountRoutes registers sale routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.searchProducts)
	r.Post("/sessions", h.open)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Delete("/", h.discard)
		r.Post("/reset", h.reset)
		r.Post("/lines", h.addLine)
		r.Patch("/lines/{lineID}", h.updateLine)
		r.Delete("/lines/{lineID}", h.removeLine)
		r.Post("/payments", h.addPayment)
		r.Delete("/payments/{paymentID}", h.removePayment)
		r.Post("/submit", h.submit)
	})
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("search"))
	if query == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "search query required")
		return
	}
	products, err := h.catalog.SearchProducts(r.Context(), query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.Open(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, snap)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, snap, err)
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Reset(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, snap, err)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.AddProduct(r.Context(), chi.URLParam(r, "id"), req)
	h.respond(w, r, snap, err)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.UpdateLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"), req)
	h.respond(w, r, snap, err)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.RemoveLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"))
	h.respond(w, r, snap, err)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	snap, err := h.service.AddPayment(r.Context(), chi.URLParam(r, "id"), req)
	h.respond(w, r, snap, err)
}

func (h *Handler) removePayment(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.RemovePayment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "paymentID"))
	h.respond(w, r, snap, err)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, snap, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, snap Snapshot, err error) {
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, pricing.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidPayment),
		errors.Is(err, fx.ErrUnsupportedCurrency):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, pricing.ErrNoPriceDefined):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Price Defined", err.Error())
	case errors.Is(err, fx.ErrMissingExchangeRate):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Missing Exchange Rate", err.Error())
	case errors.Is(err, ErrNotBalanced):
		httpx.Problem(w, http.StatusConflict, "Not Balanced", err.Error())
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrAlreadySubmitted):
		httpx.Problem(w, http.StatusConflict, "Session Closed", err.Error())
	case errors.Is(err, ErrSubmissionFailed):
		httpx.Problem(w, http.StatusBadGateway, "Submission Failed", err.Error())
	case errors.Is(err, pricing.ErrMalformedCatalog), errors.Is(err, fx.ErrMalformedRates):
		httpx.Problem(w, http.StatusBadGateway, "Upstream Failure", err.Error())
	default:
		h.logger.Error("sale request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.RespondError(w, err)
	}
}
