package pricer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"folio/internal/httpx"
)

const exchangeRateBaseURL = "https://v6.exchangerate-api.com/v6"

// ExchangeRatePricer fetches forex rates from exchangerate-api.com.
// Symbols are currency pairs in "USD/TWD" form.
type ExchangeRatePricer struct {
	client  *httpx.Client
	apiKey  string
	baseURL string
}

func NewExchangeRatePricer(client *httpx.Client, apiKey string) *ExchangeRatePricer {
	return &ExchangeRatePricer{client: client, apiKey: apiKey, baseURL: exchangeRateBaseURL}
}

// NewExchangeRatePricerWithURL is used by tests to point at a stub server.
func NewExchangeRatePricerWithURL(client *httpx.Client, apiKey, baseURL string) *ExchangeRatePricer {
	return &ExchangeRatePricer{client: client, apiKey: apiKey, baseURL: baseURL}
}

func (p *ExchangeRatePricer) Name() string { return "exchangerate" }

type exchangeRateResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"conversion_rates"`
}

func (p *ExchangeRatePricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	from, to, err := SplitPair(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if p.apiKey == "" {
		return decimal.Decimal{}, errors.New("exchangerate API key is not set")
	}

	url := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, from)

	var data exchangeRateResponse
	if err := p.client.GetJSON(ctx, url, &data); err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "exchangerate query failed for %s", symbol)
	}
	if data.Result != "success" {
		return decimal.Decimal{}, errors.Errorf("exchangerate returned result %q for %s", data.Result, symbol)
	}

	rate, ok := data.Rates[to]
	if !ok {
		return decimal.Decimal{}, errors.Errorf("exchangerate has no %s rate", to)
	}
	return decimal.NewFromFloat(rate), nil
}

// SplitPair splits a "USD/TWD" pair symbol into upper-cased halves.
func SplitPair(symbol string) (from, to string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid currency pair symbol: %s", symbol)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}
