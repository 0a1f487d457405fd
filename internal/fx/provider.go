package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrMalformedRates indicates the rate service returned an unusable payload.
var ErrMalformedRates = errors.New("fx: malformed rate payload")

// Source fetches a fresh rate set from upstream.
type Source interface {
	Fetch(ctx context.Context) (RateSet, error)
}

// HTTPRateSource reads {USD_TRY, EUR_TRY} from the exchange rate service.
type HTTPRateSource struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPRateSource builds a source with a bounded client timeout.
func NewHTTPRateSource(endpoint string) *HTTPRateSource {
	return &HTTPRateSource{Endpoint: endpoint, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch requests the current rates.
func (s *HTTPRateSource) Fetch(ctx context.Context) (RateSet, error) {
	if s == nil || s.Endpoint == "" {
		return RateSet{}, errors.New("fx: rate endpoint not configured")
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return RateSet{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return RateSet{}, fmt.Errorf("fx: fetch rates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return RateSet{}, fmt.Errorf("fx: rate service status %d: %s", resp.StatusCode, string(body))
	}
	var rates RateSet
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return RateSet{}, fmt.Errorf("%w: %v", ErrMalformedRates, err)
	}
	if !rates.Complete() {
		return RateSet{}, fmt.Errorf("%w: missing %v", ErrMalformedRates, rates.Missing())
	}
	return rates, nil
}

// Provider serves rates from cache and falls back to the upstream source.
type Provider struct {
	source Source
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewProvider wires a provider.
func NewProvider(source Source, cache *Cache, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{source: source, cache: cache, logger: logger, now: time.Now}
}

// Rates returns the cached set or fetches a fresh one.
func (p *Provider) Rates(ctx context.Context) (RateSet, error) {
	rates, ok, err := p.cache.Get(ctx)
	if err != nil {
		p.logger.Warn("fx cache read", slog.Any("error", err))
	}
	if ok {
		return rates, nil
	}
	return p.Refresh(ctx)
}

// Refresh fetches from upstream and updates the cache. Concurrent callers
// share one upstream request.
func (p *Provider) Refresh(ctx context.Context) (RateSet, error) {
	if p.source == nil {
		return RateSet{}, errors.New("fx: rate source not configured")
	}
	// The fetch is shared by every waiting caller, so it must not die with
	// the context of whichever caller happened to start it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan("rates", func() (interface{}, error) {
		rates, err := p.source.Fetch(fetchCtx)
		if err != nil {
			return RateSet{}, err
		}
		if rates.FetchedAt.IsZero() {
			rates.FetchedAt = p.now().UTC()
		}
		if err := p.cache.Set(fetchCtx, rates); err != nil {
			p.logger.Warn("fx cache write", slog.Any("error", err))
		}
		return rates, nil
	})
	select {
	case <-ctx.Done():
		return RateSet{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return RateSet{}, res.Err
		}
		return res.Val.(RateSet), nil
	}
}

// StaticRates is a fixed RateProvider.
type StaticRates RateSet

// Rates returns the fixed set.
func (s StaticRates) Rates(context.Context) (RateSet, error) {
	return RateSet(s), nil
}
