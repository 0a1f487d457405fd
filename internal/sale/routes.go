// Package sale runs POS sale sessions: cart, payments, reconciliation and submission.
package sale

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	"github.com/odyssey-erp/odyssey-pos/internal/pricing"
)

// Deps are the collaborators needed to serve sale routes.
type Deps struct {
	Registry    *Registry
	Catalog     pricing.Catalog
	Rates       fx.RateProvider
	Submitter   Submitter
	Idempotency IdempotencyGuard
	Config      ServiceConfig
	Logger      *slog.Logger
}

// MountRoutes wires the sale domain routes.
func MountRoutes(r chi.Router, deps Deps) *Service {
	svc := NewService(deps.Registry, deps.Catalog, deps.Rates, deps.Submitter, deps.Idempotency, deps.Config, deps.Logger)
	handler := NewHandler(deps.Logger, svc, deps.Catalog)
	r.Route("/sales", handler.MountRoutes)
	return svc
}
