// Package streamer keeps push-based instruments updated in near-real-time,
// one long-lived provider subscription per instrument.
package streamer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"folio/internal/entity"
	"folio/internal/services/pricer"
)

const (
	resubInitialBackoff = 1 * time.Second
	resubMaxBackoff     = 30 * time.Second
)

// FeedFunc resolves an instrument to the provider-specific feed id.
// A resolution failure permanently excludes the instrument from the push
// path; it is logged once and never retried.
type FeedFunc func(entity.Instrument) (string, error)

// Store is the write side of the shared price store.
type Store interface {
	Set(symbol string, price decimal.Decimal)
}

// Streamer runs one independent subscription goroutine per instrument.
// A dropped subscription is reopened with capped exponential backoff; one
// instrument's failures never block or crash another's stream.
type Streamer struct {
	provider pricer.StreamPricer
	feedFor  FeedFunc
	store    Store
	logger   *zap.Logger
}

func New(provider pricer.StreamPricer, feedFor FeedFunc, store Store, logger *zap.Logger) *Streamer {
	return &Streamer{provider: provider, feedFor: feedFor, store: store, logger: logger}
}

// Run subscribes every instrument and blocks until ctx is cancelled and
// all subscription goroutines have drained.
func (s *Streamer) Run(ctx context.Context, instruments []entity.Instrument) error {
	var wg sync.WaitGroup
	for _, ins := range instruments {
		feedID, err := s.feedFor(ins)
		if err != nil {
			s.logger.Error("no feed for instrument, excluded from push updates",
				zap.String("symbol", ins.Symbol),
				zap.String("provider", s.provider.Name()),
				zap.Error(err))
			continue
		}

		wg.Add(1)
		go func(ins entity.Instrument, feedID string) {
			defer wg.Done()
			s.subscribeLoop(ctx, ins, feedID)
		}(ins, feedID)
	}

	wg.Wait()
	return ctx.Err()
}

// subscribeLoop holds one subscription open, reopening it with backoff
// whenever the stream ends. The backoff resets after any stream that
// delivered at least one update. A drop is warned once; repeat drops
// without a delivery in between are logged at debug so a permanently
// dead feed does not flood the log.
func (s *Streamer) subscribeLoop(ctx context.Context, ins entity.Instrument, feedID string) {
	backoff := resubInitialBackoff
	warned := false

	for {
		var delivered atomic.Bool
		err := s.provider.Stream(ctx, feedID, func(price decimal.Decimal) {
			delivered.Store(true)
			s.store.Set(ins.Symbol, price)
		})
		if ctx.Err() != nil {
			return
		}

		if delivered.Load() {
			backoff = resubInitialBackoff
			warned = false
		}
		logDrop := s.logger.Debug
		if !warned {
			logDrop = s.logger.Warn
			warned = true
		}
		logDrop("price stream dropped, resubscribing",
			zap.String("symbol", ins.Symbol),
			zap.String("feed", feedID),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > resubMaxBackoff {
			backoff = resubMaxBackoff
		}
	}
}
