// Package poller keeps poll-based instruments fresh in the price store by
// resolving each of them once per cycle with bounded retries.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"folio/internal/entity"
	"folio/pkg/retrier"
)

// TickPolicy decides what the cycle clock does when a cycle overruns.
type TickPolicy string

const (
	// TickFixedRate fires at a constant rate from cycle start; an
	// overrunning cycle causes the next tick to be skipped, never run
	// concurrently.
	TickFixedRate TickPolicy = "fixed_rate"
	// TickFixedDelay waits the full cycle period after each cycle
	// completes.
	TickFixedDelay TickPolicy = "fixed_delay"
)

// Resolver is the price resolution capability the poller depends on.
type Resolver interface {
	Resolve(ctx context.Context, symbol string, category entity.Category) (decimal.Decimal, error)
}

// Store is the write side of the shared price store.
type Store interface {
	Set(symbol string, price decimal.Decimal)
}

// Config holds poller settings.
type Config struct {
	Cycle          time.Duration
	Policy         TickPolicy
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultConfig returns the settings used when the YAML config is silent.
func DefaultConfig() Config {
	return Config{
		Cycle:          10 * time.Second,
		Policy:         TickFixedRate,
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
	}
}

// Poller drives resolution cycles over a fixed instrument list.
type Poller struct {
	cfg      Config
	resolver Resolver
	store    Store
	logger   *zap.Logger

	// failed tracks symbols whose last cycle exhausted all retries, so the
	// same diagnostic is not repeated every cycle.
	mu     sync.Mutex
	failed map[string]bool
}

func New(cfg Config, resolver Resolver, store Store, logger *zap.Logger) *Poller {
	if cfg.Cycle <= 0 {
		cfg.Cycle = DefaultConfig().Cycle
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.Policy != TickFixedDelay {
		cfg.Policy = TickFixedRate
	}
	return &Poller{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		logger:   logger,
		failed:   make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled, firing one resolution cycle per tick
// over the given instruments.
func (p *Poller) Run(ctx context.Context, instruments []entity.Instrument) error {
	if len(instruments) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	p.logger.Info("poller started",
		zap.Int("instruments", len(instruments)),
		zap.Duration("cycle", p.cfg.Cycle),
		zap.String("policy", string(p.cfg.Policy)))

	if p.cfg.Policy == TickFixedDelay {
		return p.runFixedDelay(ctx, instruments)
	}
	return p.runFixedRate(ctx, instruments)
}

func (p *Poller) runFixedRate(ctx context.Context, instruments []entity.Instrument) error {
	ticker := time.NewTicker(p.cfg.Cycle)
	defer ticker.Stop()

	// Run must not return while a cycle is mid-flight, otherwise a stale
	// worker could write a price after the caller pruned the store.
	var wg sync.WaitGroup
	defer wg.Wait()

	var inFlight atomic.Bool
	runCycle := func() {
		if !inFlight.CompareAndSwap(false, true) {
			p.logger.Warn("poll cycle overrun, skipping tick", zap.Duration("cycle", p.cfg.Cycle))
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer inFlight.Store(false)
			p.Cycle(ctx, instruments)
		}()
	}

	runCycle()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runCycle()
		}
	}
}

func (p *Poller) runFixedDelay(ctx context.Context, instruments []entity.Instrument) error {
	for {
		p.Cycle(ctx, instruments)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.Cycle):
		}
	}
}

// Cycle fires one resolution attempt per instrument, all in parallel, and
// waits for every instrument to finish. A cancelled ctx stops the retries
// mid-flight; partial writes are fine under last-writer-wins.
func (p *Poller) Cycle(ctx context.Context, instruments []entity.Instrument) {
	var wg sync.WaitGroup
	for _, ins := range instruments {
		wg.Add(1)
		go func(ins entity.Instrument) {
			defer wg.Done()
			p.pollOne(ctx, ins)
		}(ins)
	}
	wg.Wait()
}

func (p *Poller) pollOne(ctx context.Context, ins entity.Instrument) {
	r := retrier.New(
		retrier.WithMaxAttempts(p.cfg.MaxAttempts),
		retrier.WithInitialInterval(p.cfg.InitialBackoff),
	)

	price, err := retrier.DoWithData(ctx, r, func(ctx context.Context) (decimal.Decimal, error) {
		return p.resolver.Resolve(ctx, ins.Symbol, ins.Category)
	})
	if err != nil {
		// Store entry from a previous cycle stays untouched: stale beats
		// absent.
		p.markFailed(ins, err)
		return
	}

	p.store.Set(ins.Symbol, price)
	p.markRecovered(ins)
}

func (p *Poller) markFailed(ins entity.Instrument, err error) {
	p.mu.Lock()
	already := p.failed[ins.Symbol]
	p.failed[ins.Symbol] = true
	p.mu.Unlock()

	if !already {
		p.logger.Warn("instrument skipped for this and following cycles until a provider recovers",
			zap.String("symbol", ins.Symbol),
			zap.String("category", string(ins.Category)),
			zap.Error(err))
	}
}

func (p *Poller) markRecovered(ins entity.Instrument) {
	p.mu.Lock()
	was := p.failed[ins.Symbol]
	delete(p.failed, ins.Symbol)
	p.mu.Unlock()

	if was {
		p.logger.Info("instrument recovered", zap.String("symbol", ins.Symbol))
	}
}
