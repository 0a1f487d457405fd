package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	"github.com/odyssey-erp/odyssey-pos/internal/pricing"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const idempotencyModule = "pos.sale"

// ErrAlreadySubmitted is returned when a submit for the session was already
// claimed by an earlier request.
var ErrAlreadySubmitted = errors.New("sale: session submission already processed")

// IdempotencyGuard claims submission keys so a retried submit cannot double book.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Complete(ctx context.Context, key, reference string) error
	Reference(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Recorder receives submit outcomes for metrics.
type Recorder interface {
	SaleSubmitted(outcome string)
}

// ServiceConfig tunes reconciliation.
type ServiceConfig struct {
	Tolerance decimal.Decimal
	Converter *fx.Converter
	Metrics   Recorder
}

// Service coordinates catalog lookup, pricing, reconciliation and submission
// for open sale sessions.
type Service struct {
	registry    *Registry
	catalog     pricing.Catalog
	calculator  *pricing.Calculator
	rates       fx.RateProvider
	submitter   Submitter
	idempotency IdempotencyGuard
	cfg         ServiceConfig
	logger      *slog.Logger
}

func NewService(registry *Registry, catalog pricing.Catalog, rates fx.RateProvider, submitter Submitter, idempotency IdempotencyGuard, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Converter == nil {
		cfg.Converter = fx.NewConverter(fx.DefaultPolicy())
	}
	return &Service{
		registry:    registry,
		catalog:     catalog,
		calculator:  pricing.NewCalculator(),
		rates:       rates,
		submitter:   submitter,
		idempotency: idempotency,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *Service) Open(ctx context.Context, req OpenSessionRequest) (Snapshot, error) {
	currency, err := fx.ParseCurrency(req.Currency)
	if err != nil {
		return Snapshot{}, err
	}
	if n := s.registry.Prune(); n > 0 {
		s.logger.Info("pruned idle sale sessions", slog.Int("count", n))
	}
	session := NewSession(uuid.NewString(), Header{
		CustomerCode: req.CustomerCode,
		BranchCode:   req.BranchCode,
		WarehouseID:  req.WarehouseID,
		PriceListID:  req.PriceListID,
		Currency:     currency,
	}, SessionOptions{Tolerance: s.cfg.Tolerance, Converter: s.cfg.Converter})
	s.registry.Put(session)
	return session.Snapshot()
}

func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := s.registry.Do(id, func(sess *Session) error {
		var err error
		snap, err = sess.Snapshot()
		return err
	})
	return snap, err
}

// AddProduct looks the product up, prices it against the session's price list
// and adds it to the cart.
func (s *Service) AddProduct(ctx context.Context, id string, req AddLineRequest) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		product, err := s.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("lookup product: %w", err)
		}
		header := sess.Header()
		line, err := s.calculator.PriceForWarehouse(product, header.PriceListID, header.WarehouseID)
		if err != nil {
			return err
		}
		if err := s.ensureRates(ctx, sess, line.Currency); err != nil {
			return err
		}
		_, err = sess.AddLine(line)
		return err
	})
}

func (s *Service) UpdateLine(ctx context.Context, id, lineID string, req UpdateLineRequest) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		_, err := sess.UpdateLine(lineID, cart.Patch{
			Quantity:     req.Quantity,
			UnitPrice:    req.UnitPrice,
			DiscountRate: req.DiscountRate,
			VatRate:      req.VatRate,
		})
		return err
	})
}

func (s *Service) RemoveLine(ctx context.Context, id, lineID string) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.RemoveLine(lineID)
	})
}

func (s *Service) AddPayment(ctx context.Context, id string, req AddPaymentRequest) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		var currency fx.Currency
		if req.Currency != "" {
			parsed, err := fx.ParseCurrency(req.Currency)
			if err != nil {
				return err
			}
			currency = parsed
		}
		if err := s.ensureRates(ctx, sess, currency); err != nil {
			return err
		}
		_, err := sess.AddPayment(PaymentEntry{
			Method:      PaymentMethod(req.Method),
			Amount:      req.Amount,
			AccountID:   req.AccountID,
			Currency:    currency,
			Description: req.Description,
		})
		return err
	})
}

func (s *Service) RemovePayment(ctx context.Context, id, paymentID string) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.RemovePayment(paymentID)
	})
}

// Reset clears lines and payments on explicit user request.
func (s *Service) Reset(ctx context.Context, id string) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		return sess.Reset()
	})
}

// Submit persists a balanced sale. A failed submission leaves the session
// balanced so the caller can retry.
func (s *Service) Submit(ctx context.Context, id string) (Snapshot, error) {
	return s.mutate(ctx, id, func(sess *Session) error {
		if sess.State() == StateSubmitted {
			return ErrSessionClosed
		}
		if !sess.CanSubmit() {
			return ErrNotBalanced
		}
		key := "sale-session:" + sess.ID()
		if err := s.claim(ctx, key); err != nil {
			return err
		}
		receipt, err := sess.Submit(ctx, s.submitter)
		if err != nil {
			s.logger.Error("submit sale", slog.String("session", sess.ID()), slog.Any("error", err))
			s.record("failed")
			if s.idempotency != nil {
				if delErr := s.idempotency.Delete(ctx, key); delErr != nil {
					s.logger.Warn("release submission key", slog.Any("error", delErr))
				}
			}
			return err
		}
		if s.idempotency != nil {
			if err := s.idempotency.Complete(ctx, key, receipt.SaleID); err != nil {
				s.logger.Warn("record submission reference", slog.Any("error", err))
			}
		}
		s.record("ok")
		s.logger.Info("sale submitted",
			slog.String("session", sess.ID()),
			slog.String("sale_id", receipt.SaleID),
			slog.String("doc_number", receipt.DocNumber),
		)
		return nil
	})
}

// Discard drops the session entirely.
func (s *Service) Discard(ctx context.Context, id string) error {
	return s.registry.Delete(id)
}

// claim reserves the submission key. A key left behind by a failed submit
// whose release also failed carries no reference and is taken over; only a
// completed key blocks the submit. Sessions live in one process and submits
// on a session are serialized by the registry, so the takeover cannot race.
func (s *Service) claim(ctx context.Context, key string) error {
	if s.idempotency == nil {
		return nil
	}
	err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrIdempotencyConflict) {
		return fmt.Errorf("claim submission: %w", err)
	}
	ref, completed, refErr := s.idempotency.Reference(ctx, key)
	if refErr != nil {
		return fmt.Errorf("look up submission: %w", refErr)
	}
	if completed {
		s.logger.Info("duplicate submit", slog.String("key", key), slog.String("sale_id", ref))
		s.record("duplicate")
		return ErrAlreadySubmitted
	}
	s.logger.Warn("reclaiming unfinished submission key", slog.String("key", key))
	return nil
}

func (s *Service) record(outcome string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SaleSubmitted(outcome)
	}
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*Session) error) (Snapshot, error) {
	var snap Snapshot
	err := s.registry.Do(id, func(sess *Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		var err error
		snap, err = sess.Snapshot()
		return err
	})
	return snap, err
}

// ensureRates loads exchange rates into the session when anything in it, or
// the incoming currency, differs from the sale currency.
func (s *Service) ensureRates(ctx context.Context, sess *Session, incoming fx.Currency) error {
	if !sess.NeedsRates(incoming) || s.rates == nil {
		return nil
	}
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return fmt.Errorf("load exchange rates: %w", err)
	}
	sess.UseRates(rates)
	return nil
}
