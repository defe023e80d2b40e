package pricer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MinInterval wraps a Pricer and enforces a minimum spacing between calls.
// Concurrent callers queue on the shared clock; a cancelled context
// releases the caller without consuming the slot.
type MinInterval struct {
	next     Pricer
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func WithMinInterval(next Pricer, interval time.Duration) *MinInterval {
	return &MinInterval{next: next, interval: interval}
}

func (m *MinInterval) Name() string { return m.next.Name() }

func (m *MinInterval) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if m.interval > 0 {
		if err := m.wait(ctx); err != nil {
			return decimal.Decimal{}, err
		}
	}
	return m.next.GetPrice(ctx, symbol)
}

func (m *MinInterval) wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(m.last)
		if m.last.IsZero() || elapsed >= m.interval {
			m.last = now
			m.mu.Unlock()
			return nil
		}
		remaining := m.interval - elapsed
		m.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
