package pricer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidPricer fetches crypto mid prices from the Hyperliquid public
// Info API. Mids are keyed by base coin ("BTC").
type HyperliquidPricer struct {
	info *hyperliquid.Info
}

func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

func (p *HyperliquidPricer) Name() string { return "hyperliquid" }

func (p *HyperliquidPricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Decimal{}, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	coin := strings.ToUpper(symbol)
	mid, ok := mids[coin]
	if !ok || mid == "" {
		return decimal.Decimal{}, errors.Errorf("hyperliquid API returned empty mid price for %s", coin)
	}
	return decimal.NewFromString(mid)
}
