package fx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// Handler exposes read-only FX endpoints.
type Handler struct {
	logger    *slog.Logger
	provider  RateProvider
	converter *Converter
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, provider RateProvider, converter *Converter) *Handler {
	return &Handler{logger: logger, provider: provider, converter: converter, validator: validator.New()}
}

// MountRoutes registers fx routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rates", h.rates)
	r.Post("/convert", h.convert)
}

type convertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from" validate:"required,len=3"`
	To     string          `json:"to" validate:"required,len=3"`
}

type convertResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	From      Currency        `json:"from"`
	To        Currency        `json:"to"`
	Converted decimal.Decimal `json:"converted"`
}

func (h *Handler) rates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.provider.Rates(r.Context())
	if err != nil {
		h.logger.Error("load rates", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Rates Unavailable", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := ParseCurrency(req.From)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	to, err := ParseCurrency(req.To)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var rates RateSet
	if from != to {
		rates, err = h.provider.Rates(r.Context())
		if err != nil {
			h.logger.Error("load rates", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Rates Unavailable", err.Error())
			return
		}
	}
	converted, err := h.converter.Convert(req.Amount, from, to, rates)
	if err != nil {
		if errors.Is(err, ErrMissingExchangeRate) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Missing Exchange Rate", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, convertResponse{Amount: req.Amount, From: from, To: to, Converted: converted})
}
