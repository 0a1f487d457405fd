package transfer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

// Handler exposes the transfer endpoint.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers transfer routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.engine.Execute(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var partial *PartialTransferError
	switch {
	case errors.As(err, &partial):
		httpx.ProblemWithExtra(w, http.StatusBadGateway, "Partial Transfer", err.Error(), map[string]any{
			"withdrawal":      partial.Withdrawal,
			"pending_deposit": partial.Deposit,
			"retry_scheduled": partial.RetryScheduled,
		})
	case errors.Is(err, ErrSameAccount), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, fx.ErrMissingExchangeRate):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Missing Exchange Rate", err.Error())
	default:
		h.logger.Error("transfer failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
