package internal

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"folio/config"
	"folio/internal/entity"
	"folio/internal/services/broadcaster"
	"folio/internal/services/poller"
	"folio/internal/services/pricer"
	"folio/internal/services/resolver"
	"folio/internal/services/streamer"
	"folio/internal/store"
)

// pushCategories are updated through long-lived streams; everything else
// is polled once per cycle.
var pushCategories = []entity.Category{entity.CategoryCrypto}

var pollCategories = []entity.Category{
	entity.CategoryUSStock,
	entity.CategoryUSETF,
	entity.CategoryTWStock,
	entity.CategoryTWETF,
	entity.CategoryForex,
}

// Tracker owns the shared price store and the worker generation feeding
// it. Replacing the portfolio stops the current generation, swaps the
// instrument list atomically, prunes orphaned store entries and starts a
// fresh generation.
type Tracker struct {
	cfg            config.Config
	logger         *zap.Logger
	store          *store.PriceStore
	resolver       *resolver.Resolver
	broadcaster    *broadcaster.Broadcaster
	streamProvider pricer.StreamPricer
	feedFor        streamer.FeedFunc

	portfolio atomic.Pointer[entity.Portfolio]

	mu        sync.Mutex
	runCtx    context.Context
	genCancel context.CancelFunc
	genDone   chan struct{}
}

// NewTracker assembles the engine around a resolver and a push stream
// provider.
func NewTracker(cfg config.Config, res *resolver.Resolver, streamProvider pricer.StreamPricer, feedFor streamer.FeedFunc, logger *zap.Logger) *Tracker {
	t := &Tracker{
		cfg:            cfg,
		logger:         logger,
		store:          store.New(),
		resolver:       res,
		streamProvider: streamProvider,
		feedFor:        feedFor,
	}
	t.broadcaster = broadcaster.New(broadcaster.Config{
		Interval:       cfg.BroadcastInterval,
		TargetCurrency: cfg.TargetCurrency,
	}, t.store, t.Portfolio, logger)
	return t
}

// Portfolio returns the current instrument list. Readers always see a
// complete list, old or new, never a mix.
func (t *Tracker) Portfolio() *entity.Portfolio {
	return t.portfolio.Load()
}

// Subscribe registers a snapshot observer.
func (t *Tracker) Subscribe() *broadcaster.Observer {
	return t.broadcaster.Subscribe()
}

// Unsubscribe removes a snapshot observer.
func (t *Tracker) Unsubscribe(o *broadcaster.Observer) {
	t.broadcaster.Unsubscribe(o)
}

// Run starts the broadcaster and the first worker generation, blocking
// until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, initial *entity.Portfolio) error {
	// An upload can land before Run starts; it must not be clobbered.
	t.portfolio.CompareAndSwap(nil, initial)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return t.broadcaster.Run(gctx)
	})

	t.mu.Lock()
	t.runCtx = gctx
	t.startGeneration(t.portfolio.Load())
	t.mu.Unlock()

	<-gctx.Done()

	t.mu.Lock()
	if t.genCancel != nil {
		t.genCancel()
		<-t.genDone
	}
	t.mu.Unlock()

	return g.Wait()
}

// Replace installs a new portfolio. Safe to call while Run is active; the
// previous generation is fully drained before workers restart, so no stale
// worker writes prices for a removed instrument after the prune. Before Run
// the portfolio is only installed; Run picks it up when it starts the first
// generation.
func (t *Tracker) Replace(p *entity.Portfolio) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.genCancel != nil {
		t.genCancel()
		<-t.genDone
	}

	t.portfolio.Store(p)
	t.store.Prune(p.Symbols())
	if t.runCtx != nil {
		t.startGeneration(p)
	}

	t.logger.Info("portfolio replaced", zap.Int("instruments", p.Len()))
}

// startGeneration launches poller and streamer for the given portfolio.
// Caller must hold t.mu and have Run active.
func (t *Tracker) startGeneration(p *entity.Portfolio) {
	genCtx, cancel := context.WithCancel(t.runCtx)
	done := make(chan struct{})
	t.genCancel, t.genDone = cancel, done

	pollInstruments := p.ByCategory(pollCategories...)
	pushInstruments := p.ByCategory(pushCategories...)

	pol := poller.New(poller.Config{
		Cycle:  t.cfg.Cycle,
		Policy: poller.TickPolicy(t.cfg.TickPolicy),
	}, t.resolver, t.store, t.logger)
	str := streamer.New(t.streamProvider, t.feedFor, t.store, t.logger)

	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = pol.Run(genCtx, pollInstruments)
		}()
		go func() {
			defer wg.Done()
			_ = str.Run(genCtx, pushInstruments)
		}()
		wg.Wait()
	}()
}

// TotalOnce values the whole portfolio by resolving every instrument
// directly, without touching the continuous store. Used by the one-shot
// total mode.
func (t *Tracker) TotalOnce(ctx context.Context, p *entity.Portfolio) entity.Snapshot {
	prices := t.resolver.ResolveAll(ctx, p.Instruments())
	return broadcaster.Build(p, prices, t.cfg.TargetCurrency)
}
