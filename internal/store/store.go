// Package store holds the latest known unit price per symbol. It is the
// single mutable resource shared between the poller, the streamer and the
// broadcaster; all access goes through Get/Set/Snapshot.
package store

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PriceStore is a symbol-keyed map of the latest known price.
// Absence of a symbol means "unknown", never zero. Writes are
// last-writer-wins with no history.
type PriceStore struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func New() *PriceStore {
	return &PriceStore{prices: make(map[string]decimal.Decimal)}
}

// Get returns the latest price for symbol, if one has been resolved.
func (s *PriceStore) Get(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// Set records the latest price for symbol, replacing any previous value.
func (s *PriceStore) Set(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[symbol] = price
	s.mu.Unlock()
}

// Snapshot returns a copy of the whole map taken under one lock
// acquisition, so readers never observe a torn mix of old and new prices.
func (s *PriceStore) Snapshot() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.prices))
	for sym, p := range s.prices {
		out[sym] = p
	}
	return out
}

// Prune removes every entry whose symbol is not in keep. Called when the
// portfolio is replaced so orphaned symbols stop appearing in snapshots.
func (s *PriceStore) Prune(keep map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym := range s.prices {
		if _, ok := keep[sym]; !ok {
			delete(s.prices, sym)
		}
	}
}

// Len returns the number of resolved symbols.
func (s *PriceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}
