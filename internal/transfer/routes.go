package transfer

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
)

// Deps are the collaborators needed to serve transfer routes.
type Deps struct {
	Accounts  AccountDirectory
	Ledger    Ledger
	Rates     fx.RateProvider
	Converter *fx.Converter
	Retry     RetryScheduler
	Metrics   Recorder
	Logger    *slog.Logger
}

// MountRoutes wires the transfer domain routes.
func MountRoutes(r chi.Router, deps Deps) *Engine {
	engine := NewEngine(deps.Accounts, deps.Ledger, deps.Rates, deps.Converter, deps.Retry, deps.Logger)
	if deps.Metrics != nil {
		engine.WithMetrics(deps.Metrics)
	}
	handler := NewHandler(deps.Logger, engine)
	r.Route("/transfers", handler.MountRoutes)
	return engine
}
