// Package resolver picks one reliable price per instrument from an ordered
// chain of providers.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"folio/internal/entity"
	"folio/internal/services/pricer"
)

// requestTimeout bounds every single provider call so one unresponsive
// provider cannot stall a whole cycle.
const requestTimeout = 5 * time.Second

// Resolver tries providers in chain order and returns the first success.
// It never retries; retry policy belongs to the caller.
type Resolver struct {
	chains map[entity.Category][]pricer.Pricer
	logger *zap.Logger
}

func New(chains map[entity.Category][]pricer.Pricer, logger *zap.Logger) *Resolver {
	return &Resolver{chains: chains, logger: logger}
}

// HasChain reports whether any provider is configured for the category.
func (r *Resolver) HasChain(category entity.Category) bool {
	return len(r.chains[category]) > 0
}

// Resolve returns the price from the first provider in the category chain
// that succeeds. When every provider fails, the returned error carries the
// reason of the last provider tried.
func (r *Resolver) Resolve(ctx context.Context, symbol string, category entity.Category) (decimal.Decimal, error) {
	chain := r.chains[category]
	if len(chain) == 0 {
		return decimal.Decimal{}, errors.Errorf("no providers configured for category %s", category)
	}

	var lastErr error
	for _, p := range chain {
		price, err := r.fetch(ctx, p, symbol)
		if err != nil {
			lastErr = err
			r.logger.Debug("provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		return price, nil
	}

	return decimal.Decimal{}, errors.Wrapf(lastErr, "all providers failed for %s", symbol)
}

func (r *Resolver) fetch(ctx context.Context, p pricer.Pricer, symbol string) (decimal.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	price, err := p.GetPrice(callCtx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	// A non-positive price is never a valid quote; treat it as a provider
	// failure instead of letting it poison the store.
	if !price.IsPositive() {
		return decimal.Decimal{}, errors.Errorf("%s returned non-positive price %s for %s", p.Name(), price, symbol)
	}
	return price, nil
}

// ResolveAll resolves every instrument in parallel and returns the prices
// that succeeded. Failures are logged per instrument and omitted; a bad
// symbol never aborts its siblings.
func (r *Resolver) ResolveAll(ctx context.Context, instruments []entity.Instrument) map[string]decimal.Decimal {
	var mu sync.Mutex
	prices := make(map[string]decimal.Decimal, len(instruments))

	g, ctx := errgroup.WithContext(ctx)
	for _, ins := range instruments {
		ins := ins
		g.Go(func() error {
			price, err := r.Resolve(ctx, ins.Symbol, ins.Category)
			if err != nil {
				r.logger.Warn("failed to resolve price",
					zap.String("symbol", ins.Symbol),
					zap.String("category", string(ins.Category)),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			prices[ins.Symbol] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prices
}
