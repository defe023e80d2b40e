package pricer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"folio/internal/httpx"
)

const redstoneBaseURL = "https://api.redstone.finance/prices/"

// RedstonePricer fetches prices from the RedStone oracle API. It covers
// both crypto symbols and large US tickers.
type RedstonePricer struct {
	client  *httpx.Client
	baseURL string
}

func NewRedstonePricer(client *httpx.Client) *RedstonePricer {
	return &RedstonePricer{client: client, baseURL: redstoneBaseURL}
}

// NewRedstonePricerWithURL is used by tests to point at a stub server.
func NewRedstonePricerWithURL(client *httpx.Client, baseURL string) *RedstonePricer {
	return &RedstonePricer{client: client, baseURL: baseURL}
}

func (p *RedstonePricer) Name() string { return "redstone" }

type redstonePrice struct {
	Value float64 `json:"value"`
}

func (p *RedstonePricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?symbol=%s&provider=redstone&limit=1", p.baseURL, strings.ToUpper(symbol))

	var data []redstonePrice
	if err := p.client.GetJSON(ctx, url, &data); err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "redstone query failed for %s", symbol)
	}
	if len(data) == 0 {
		return decimal.Decimal{}, errors.Errorf("redstone returned no price data for %s", symbol)
	}
	return decimal.NewFromFloat(data[0].Value), nil
}
