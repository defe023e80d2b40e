package pricer

import (
	"context"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitPricer fetches crypto spot prices from the Bybit V5 market API.
type BybitPricer struct {
	client *bybit.Client
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

func (p *BybitPricer) Name() string { return "bybit" }

func (p *BybitPricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := bybit.SymbolV5(strings.ToUpper(symbol) + "USDT")

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &pair,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, errors.Errorf("bybit API returned empty prices for %s", pair)
	}
	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}
