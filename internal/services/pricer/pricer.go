// Package pricer contains the provider adapters: one type per external
// price source, all exposing the same one-shot fetch capability.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"
)

// Pricer fetches one price for a symbol. Implementations must honour ctx
// cancellation and request timeouts; they never retry on their own.
type Pricer interface {
	Name() string
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StreamPricer delivers a continuous stream of prices for a feed.
// Stream blocks until the underlying stream ends or ctx is cancelled,
// invoking onPrice once per received update in arrival order.
type StreamPricer interface {
	Name() string
	Stream(ctx context.Context, feedID string, onPrice func(decimal.Decimal)) error
}
