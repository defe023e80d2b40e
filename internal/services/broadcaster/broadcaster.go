// Package broadcaster turns the raw price store into valued snapshots on a
// fixed cadence and fans them out to every subscribed observer.
package broadcaster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"folio/internal/entity"
	"folio/internal/store"
)

const defaultObserverBuffer = 8

// PortfolioFunc supplies the current portfolio; the tracker swaps it
// atomically on re-upload.
type PortfolioFunc func() *entity.Portfolio

// Config holds broadcaster settings.
type Config struct {
	Interval       time.Duration
	TargetCurrency string
	ObserverBuffer int
}

// Observer is one snapshot subscriber. Delivery is per-observer and
// non-blocking: when the buffer is full the snapshot is dropped for that
// observer only.
type Observer struct {
	ch      chan entity.Snapshot
	dropped atomic.Int64
}

// C returns the snapshot delivery channel. It is closed on Unsubscribe.
func (o *Observer) C() <-chan entity.Snapshot { return o.ch }

// Dropped reports how many snapshots were dropped because the observer
// was not keeping up.
func (o *Observer) Dropped() int64 { return o.dropped.Load() }

// Broadcaster owns the observer registry and the publish loop.
type Broadcaster struct {
	cfg       Config
	store     *store.PriceStore
	portfolio PortfolioFunc
	logger    *zap.Logger

	mu        sync.Mutex
	observers map[*Observer]struct{}
}

func New(cfg Config, priceStore *store.PriceStore, portfolio PortfolioFunc, logger *zap.Logger) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.ObserverBuffer <= 0 {
		cfg.ObserverBuffer = defaultObserverBuffer
	}
	return &Broadcaster{
		cfg:       cfg,
		store:     priceStore,
		portfolio: portfolio,
		logger:    logger,
		observers: make(map[*Observer]struct{}),
	}
}

// Subscribe registers a new observer.
func (b *Broadcaster) Subscribe() *Observer {
	o := &Observer{ch: make(chan entity.Snapshot, b.cfg.ObserverBuffer)}
	b.mu.Lock()
	b.observers[o] = struct{}{}
	n := len(b.observers)
	b.mu.Unlock()

	b.logger.Debug("observer subscribed", zap.Int("observers", n))
	return o
}

// Unsubscribe removes the observer and closes its channel.
func (b *Broadcaster) Unsubscribe(o *Observer) {
	b.mu.Lock()
	if _, ok := b.observers[o]; ok {
		delete(b.observers, o)
		close(o.ch)
	}
	b.mu.Unlock()
}

// Run publishes one snapshot per interval until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Publish(b.Take())
		}
	}
}

// Take builds a snapshot from one atomic read of the store.
func (b *Broadcaster) Take() entity.Snapshot {
	return Build(b.portfolio(), b.store.Snapshot(), b.cfg.TargetCurrency)
}

// Publish delivers the snapshot to every observer. A full observer buffer
// means the snapshot is dropped for that observer; nobody blocks anyone.
func (b *Broadcaster) Publish(snap entity.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for o := range b.observers {
		select {
		case o.ch <- snap:
		default:
			if o.dropped.Add(1) == 1 {
				b.logger.Warn("slow observer, dropping snapshots")
			}
		}
	}
}
