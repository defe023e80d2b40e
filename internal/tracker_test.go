package internal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"folio/config"
	"folio/internal/entity"
	"folio/internal/services/pricer"
	"folio/internal/services/resolver"
)

type stubPricer struct {
	name   string
	prices map[string]decimal.Decimal
}

func (s *stubPricer) Name() string { return s.name }

func (s *stubPricer) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, context.DeadlineExceeded
	}
	return price, nil
}

type stubStreamer struct {
	prices map[string]decimal.Decimal
}

func (s *stubStreamer) Name() string { return "stub-stream" }

func (s *stubStreamer) Stream(ctx context.Context, feedID string, onPrice func(decimal.Decimal)) error {
	if price, ok := s.prices[feedID]; ok {
		onPrice(price)
	}
	<-ctx.Done()
	return ctx.Err()
}

func identityFeed(in entity.Instrument) (string, error) { return in.Symbol, nil }

func newTestTracker(t *testing.T, prices map[string]decimal.Decimal, streamPrices map[string]decimal.Decimal) *Tracker {
	t.Helper()

	chains := map[entity.Category][]pricer.Pricer{}
	for _, cat := range pollCategories {
		chains[cat] = []pricer.Pricer{&stubPricer{name: "stub", prices: prices}}
	}
	chains[entity.CategoryCrypto] = []pricer.Pricer{&stubPricer{name: "stub", prices: prices}}

	cfg := config.Config{
		Cycle:             20 * time.Millisecond,
		TickPolicy:        "fixed_rate",
		BroadcastInterval: time.Hour,
		TargetCurrency:    "TWD",
	}
	res := resolver.New(chains, zap.NewNop())
	return NewTracker(cfg, res, &stubStreamer{prices: streamPrices}, identityFeed, zap.NewNop())
}

func mustPortfolio(t *testing.T, instruments ...entity.Instrument) *entity.Portfolio {
	t.Helper()
	p, err := entity.NewPortfolio(instruments)
	require.NoError(t, err)
	return p
}

func waitForPrice(t *testing.T, tr *Tracker, symbol string) decimal.Decimal {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if price, ok := tr.store.Get(symbol); ok {
			return price
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("price for %s never appeared in store", symbol)
	return decimal.Zero
}

func TestTracker_RunPopulatesStore(t *testing.T) {
	tr := newTestTracker(t,
		map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)},
		map[string]decimal.Decimal{"BTC": decimal.NewFromInt(60000)},
	)
	p := mustPortfolio(t,
		entity.Instrument{Symbol: "AAPL", Category: entity.CategoryUSStock, Quantity: decimal.NewFromInt(10)},
		entity.Instrument{Symbol: "BTC", Category: entity.CategoryCrypto, Quantity: decimal.NewFromInt(1)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, p) }()

	polled := waitForPrice(t, tr, "AAPL")
	assert.True(t, polled.Equal(decimal.NewFromInt(150)))
	streamed := waitForPrice(t, tr, "BTC")
	assert.True(t, streamed.Equal(decimal.NewFromInt(60000)))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("tracker did not stop after cancel")
	}
}

func TestTracker_ReplacePrunesOrphans(t *testing.T) {
	tr := newTestTracker(t,
		map[string]decimal.Decimal{
			"AAPL": decimal.NewFromInt(150),
			"TSLA": decimal.NewFromInt(200),
		},
		nil,
	)
	p := mustPortfolio(t,
		entity.Instrument{Symbol: "AAPL", Category: entity.CategoryUSStock, Quantity: decimal.NewFromInt(10)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, p) }()

	waitForPrice(t, tr, "AAPL")

	next := mustPortfolio(t,
		entity.Instrument{Symbol: "TSLA", Category: entity.CategoryUSStock, Quantity: decimal.NewFromInt(5)},
	)
	tr.Replace(next)

	// The old symbol is gone immediately and stays gone.
	_, ok := tr.store.Get("AAPL")
	assert.False(t, ok, "replaced symbol should be pruned from the store")
	assert.Same(t, next, tr.Portfolio())

	waitForPrice(t, tr, "TSLA")
	_, ok = tr.store.Get("AAPL")
	assert.False(t, ok, "pruned symbol must not reappear after new cycles")

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tracker did not stop after cancel")
	}
}

func TestTracker_ReplaceBeforeRun(t *testing.T) {
	tr := newTestTracker(t,
		map[string]decimal.Decimal{"TSLA": decimal.NewFromInt(200)},
		nil,
	)
	uploaded := mustPortfolio(t,
		entity.Instrument{Symbol: "TSLA", Category: entity.CategoryUSStock, Quantity: decimal.NewFromInt(5)},
	)

	// An upload arriving before the engine starts must not crash and must
	// not be lost once the engine does start.
	require.NotPanics(t, func() { tr.Replace(uploaded) })
	assert.Same(t, uploaded, tr.Portfolio())

	initial := mustPortfolio(t,
		entity.Instrument{Symbol: "AAPL", Category: entity.CategoryUSStock, Quantity: decimal.NewFromInt(10)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, initial) }()

	waitForPrice(t, tr, "TSLA")
	assert.Same(t, uploaded, tr.Portfolio(), "the startup portfolio must not clobber an earlier upload")

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tracker did not stop after cancel")
	}
}

func TestTracker_TotalOnce(t *testing.T) {
	tr := newTestTracker(t,
		map[string]decimal.Decimal{
			"AAPL":    decimal.NewFromInt(100),
			"USD/TWD": decimal.NewFromInt(30),
		},
		nil,
	)
	p := mustPortfolio(t,
		entity.Instrument{Symbol: "AAPL", Category: entity.CategoryUSStock, Quantity: decimal.NewFromInt(2)},
		entity.Instrument{Symbol: "USD/TWD", Category: entity.CategoryForex, Quantity: decimal.NewFromInt(1)},
	)

	snap := tr.TotalOnce(context.Background(), p)

	assert.True(t, snap.TotalUSD.Equal(decimal.NewFromInt(230)), "got %s", snap.TotalUSD)
	assert.True(t, snap.TargetRateKnown)
	assert.True(t, snap.TotalTarget.Equal(decimal.NewFromInt(6900)), "got %s", snap.TotalTarget)
	assert.Empty(t, snap.Diagnostics)
}
