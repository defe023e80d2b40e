package pricer

import (
	"context"

	"github.com/shopspring/decimal"
)

// SymbolSuffix wraps a Pricer and appends a fixed suffix to every symbol,
// e.g. mapping the portfolio's "2330" to Yahoo's "2330.TW".
type SymbolSuffix struct {
	next   Pricer
	suffix string
}

func WithSymbolSuffix(next Pricer, suffix string) *SymbolSuffix {
	return &SymbolSuffix{next: next, suffix: suffix}
}

func (s *SymbolSuffix) Name() string { return s.next.Name() }

func (s *SymbolSuffix) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.next.GetPrice(ctx, symbol+s.suffix)
}
