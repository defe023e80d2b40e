package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"folio/internal/entity"
	"folio/internal/store"
)

type scriptedResolver struct {
	calls    atomic.Int64
	failures int64
	price    decimal.Decimal
	block    bool
}

func (r *scriptedResolver) Resolve(ctx context.Context, symbol string, category entity.Category) (decimal.Decimal, error) {
	n := r.calls.Add(1)
	if r.block {
		<-ctx.Done()
		return decimal.Decimal{}, ctx.Err()
	}
	if n <= r.failures {
		return decimal.Decimal{}, errors.New("transient provider failure")
	}
	return r.price, nil
}

var aapl = entity.Instrument{
	Symbol:   "AAPL",
	Category: entity.CategoryUSStock,
	Quantity: decimal.NewFromInt(10),
}

func TestPoller_CycleStoresUnitPrice(t *testing.T) {
	st := store.New()
	res := &scriptedResolver{price: decimal.NewFromFloat(150.0)}
	p := New(Config{MaxAttempts: 3, InitialBackoff: time.Millisecond}, res, st, zap.NewNop())

	p.Cycle(context.Background(), []entity.Instrument{aapl})

	price, ok := st.Get("AAPL")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromFloat(150.0)),
		"store must hold the unit price, not price times quantity")
}

func TestPoller_RetriesWithBackoffThenSucceeds(t *testing.T) {
	st := store.New()
	res := &scriptedResolver{failures: 2, price: decimal.NewFromInt(42)}
	p := New(Config{MaxAttempts: 3, InitialBackoff: 20 * time.Millisecond}, res, st, zap.NewNop())

	start := time.Now()
	p.Cycle(context.Background(), []entity.Instrument{aapl})
	elapsed := time.Since(start)

	price, ok := st.Get("AAPL")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(42)))
	assert.Equal(t, int64(3), res.calls.Load())
	// Backoff sequence: initial interval, then doubled.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestPoller_ExhaustedRetriesLeaveStoreUntouched(t *testing.T) {
	st := store.New()
	stale := decimal.NewFromInt(140)
	st.Set("AAPL", stale)

	res := &scriptedResolver{failures: 1 << 30}
	p := New(Config{MaxAttempts: 3, InitialBackoff: time.Millisecond}, res, st, zap.NewNop())

	p.Cycle(context.Background(), []entity.Instrument{aapl})

	price, ok := st.Get("AAPL")
	require.True(t, ok, "stale-but-present beats absent")
	assert.True(t, price.Equal(stale))
}

func TestPoller_FailureLoggedOnceUntilRecovery(t *testing.T) {
	st := store.New()
	res := &scriptedResolver{failures: 1 << 30}
	p := New(Config{MaxAttempts: 1, InitialBackoff: time.Millisecond}, res, st, zap.NewNop())

	p.Cycle(context.Background(), []entity.Instrument{aapl})
	p.mu.Lock()
	assert.True(t, p.failed["AAPL"])
	p.mu.Unlock()

	// Recovery clears the suppression.
	res.failures = 0
	res.calls.Store(0)
	p.Cycle(context.Background(), []entity.Instrument{aapl})
	p.mu.Lock()
	assert.False(t, p.failed["AAPL"])
	p.mu.Unlock()
}

func TestPoller_FixedRateSkipsTickWhileCycleInFlight(t *testing.T) {
	st := store.New()
	res := &scriptedResolver{block: true}
	p := New(Config{
		Cycle:          10 * time.Millisecond,
		Policy:         TickFixedRate,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}, res, st, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx, []entity.Instrument{aapl})

	// The first cycle blocks until cancellation; every following tick must
	// be skipped rather than run concurrently.
	assert.Equal(t, int64(1), res.calls.Load())
}

func TestPoller_FixedDelayKeepsCycling(t *testing.T) {
	st := store.New()
	res := &scriptedResolver{price: decimal.NewFromInt(1)}
	p := New(Config{
		Cycle:          15 * time.Millisecond,
		Policy:         TickFixedDelay,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}, res, st, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx, []entity.Instrument{aapl})

	assert.GreaterOrEqual(t, res.calls.Load(), int64(2))
}

func TestPoller_EmptyInstrumentListWaits(t *testing.T) {
	p := New(Config{}, &scriptedResolver{}, store.New(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Run(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
