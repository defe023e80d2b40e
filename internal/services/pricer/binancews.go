package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BinanceStreamer subscribes to the Binance aggregated-trade websocket
// stream. The feed id is the spot pair symbol ("BTCUSDT").
type BinanceStreamer struct{}

func NewBinanceStreamer() *BinanceStreamer {
	return &BinanceStreamer{}
}

func (s *BinanceStreamer) Name() string { return "binance-ws" }

// Stream blocks until the websocket closes, errors, or ctx is cancelled.
func (s *BinanceStreamer) Stream(ctx context.Context, feedID string, onPrice func(decimal.Decimal)) error {
	errCh := make(chan error, 1)

	handler := func(event *binance.WsAggTradeEvent) {
		price, err := decimal.NewFromString(event.Price)
		if err != nil {
			return
		}
		onPrice(price)
	}
	errHandler := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	doneC, stopC, err := binance.WsAggTradeServe(feedID, handler, errHandler)
	if err != nil {
		return errors.Wrapf(err, "binance ws subscribe failed for %s", feedID)
	}

	select {
	case <-ctx.Done():
		close(stopC)
		<-doneC
		return ctx.Err()
	case <-doneC:
		select {
		case err := <-errCh:
			return errors.Wrapf(err, "binance ws stream failed for %s", feedID)
		default:
			return errors.Errorf("binance ws stream closed for %s", feedID)
		}
	}
}
