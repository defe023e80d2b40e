package pricer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"folio/internal/httpx"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooPricer fetches the latest close from the Yahoo Finance chart API.
// Works for both US tickers ("AAPL") and Taiwan-listed ones ("2330.TW").
type YahooPricer struct {
	client  *httpx.Client
	baseURL string
}

func NewYahooPricer(client *httpx.Client) *YahooPricer {
	return &YahooPricer{client: client, baseURL: yahooBaseURL}
}

// NewYahooPricerWithURL is used by tests to point at a stub server.
func NewYahooPricerWithURL(client *httpx.Client, baseURL string) *YahooPricer {
	return &YahooPricer{client: client, baseURL: baseURL}
}

func (p *YahooPricer) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (p *YahooPricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", p.baseURL, symbol)

	var data yahooChartResponse
	if err := p.client.GetJSON(ctx, url, &data); err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "yahoo query failed for %s", symbol)
	}

	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return decimal.Decimal{}, errors.Errorf("yahoo returned no chart data for %s", symbol)
	}

	// Last non-null close in the series; intraday points may be null.
	closes := data.Chart.Result[0].Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil {
			return decimal.NewFromFloat(*closes[i]), nil
		}
	}
	return decimal.Decimal{}, errors.Errorf("yahoo returned no close price for %s", symbol)
}
