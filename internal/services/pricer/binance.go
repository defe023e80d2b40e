package pricer

import (
	"context"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BinancePricer fetches crypto spot prices from the Binance public API.
// Symbols are base coins ("BTC"); the adapter quotes them against USDT.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

func (p *BinancePricer) Name() string { return "binance" }

func (p *BinancePricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := BinancePair(symbol)
	prices, err := p.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Errorf("binance API returned empty prices for %s", pair)
	}
	return decimal.NewFromString(prices[0].Price)
}

// BinancePair maps a base coin to the Binance USDT spot pair.
func BinancePair(symbol string) string {
	return strings.ToUpper(symbol) + "USDT"
}
