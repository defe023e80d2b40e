package pricer

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"folio/internal/httpx"
)

const twseBaseURL = "https://mis.twse.com.tw/stock/api/getStockInfo.jsp"

// TwsePricer fetches Taiwan stock and ETF quotes from the TWSE market
// information service.
type TwsePricer struct {
	client  *httpx.Client
	baseURL string
}

func NewTwsePricer(client *httpx.Client) *TwsePricer {
	return &TwsePricer{client: client, baseURL: twseBaseURL}
}

// NewTwsePricerWithURL is used by tests to point at a stub server.
func NewTwsePricerWithURL(client *httpx.Client, baseURL string) *TwsePricer {
	return &TwsePricer{client: client, baseURL: baseURL}
}

func (p *TwsePricer) Name() string { return "twse" }

type twseResponse struct {
	MsgArray []twseStock `json:"msgArray"`
}

type twseStock struct {
	Z string `json:"z"` // last traded price
	A string `json:"a"` // ask prices, "_"-separated, best first
	B string `json:"b"` // bid prices, "_"-separated, best first
	Y string `json:"y"` // previous close
}

func (p *TwsePricer) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s?ex_ch=tse_%s.tw", p.baseURL, symbol)

	var data twseResponse
	if err := p.client.GetJSON(ctx, url, &data); err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "twse query failed for %s", symbol)
	}
	if len(data.MsgArray) == 0 {
		return decimal.Decimal{}, errors.Errorf("twse returned no data for %s", symbol)
	}

	stock := data.MsgArray[0]
	if stock.Z != "-" {
		price, err := decimal.NewFromString(stock.Z)
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "twse last price for %s", symbol)
		}
		return price, nil
	}

	// Off-hours the last price is "-"; fall back to the geometric mean of
	// best ask and bid, then to the previous close.
	ask, askErr := parseFirstQuote(stock.A)
	bid, bidErr := parseFirstQuote(stock.B)
	if askErr == nil && bidErr == nil {
		return decimal.NewFromFloat(math.Sqrt(ask * bid)), nil
	}

	price, err := decimal.NewFromString(stock.Y)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "twse previous close for %s", symbol)
	}
	return price, nil
}

func parseFirstQuote(quotes string) (float64, error) {
	first := quotes
	if idx := strings.Index(quotes, "_"); idx >= 0 {
		first = quotes[:idx]
	}
	return strconv.ParseFloat(first, 64)
}
