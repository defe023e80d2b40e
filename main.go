// Command folio tracks the live market value of a multi-asset portfolio
// (crypto, US and Taiwan equities/ETFs, forex) by aggregating prices from
// multiple providers into one streamed view.
//
// Usage:
//
//	folio -mode total -portfolio config/portfolio.yaml
//	folio -mode watch -config config/folio.yaml
//	folio -mode serve -config config/folio.yaml
//
// Optional environment variables:
//
//	EXCHANGERATE_API_KEY  key for exchangerate-api.com (forex rates)
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"folio/config"
	"folio/internal"
	"folio/internal/display"
	"folio/internal/entity"
	"folio/internal/httpx"
	"folio/internal/services/pricer"
	"folio/internal/services/resolver"
	"folio/internal/services/streamer"
	"folio/internal/web"
)

const (
	requestTimeout  = 5 * time.Second
	twseMinInterval = time.Second
	totalTimeout    = 60 * time.Second
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	portfolio, err := config.LoadPortfolio(cfg.PortfolioPath)
	if err != nil {
		logger.Fatal("failed to load portfolio", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := resolver.New(buildChains(ctx, cfg), logger)
	streamProvider, feedFor := buildPushPath(cfg)
	tracker := internal.NewTracker(cfg, res, streamProvider, feedFor, logger)

	switch cfg.Mode {
	case config.ModeTotal:
		totalCtx, cancel := context.WithTimeout(ctx, totalTimeout)
		defer cancel()
		snap := tracker.TotalOnce(totalCtx, portfolio)
		fmt.Println(display.Render(snap))

	case config.ModeWatch:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return tracker.Run(gctx, portfolio)
		})
		g.Go(func() error {
			return display.Watch(gctx, tracker)
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watch stopped", zap.Error(err))
		}

	case config.ModeServe:
		server := web.NewServer(cfg.Listen, tracker, logger)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return tracker.Run(gctx, portfolio)
		})
		g.Go(func() error {
			return server.Start(gctx)
		})
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped", zap.Error(err))
		}
	}
}

// buildChains assembles the per-category fallback chains. Order matters:
// earlier providers are tried first.
func buildChains(ctx context.Context, cfg config.Config) map[entity.Category][]pricer.Pricer {
	client := httpx.New(requestTimeout)

	binanceP := pricer.NewBinancePricer(binance.NewClient("", ""))
	bybitP := pricer.NewBybitPricer(bybit.NewClient())
	hyperliquidP := pricer.NewHyperliquidPricer(
		hyperliquid.NewInfo(ctx, hyperliquid.MainnetAPIURL, true, nil, nil))
	redstoneP := pricer.NewRedstonePricer(client)
	yahooP := pricer.NewYahooPricer(client)
	twseP := pricer.WithMinInterval(pricer.NewTwsePricer(client), twseMinInterval)
	yahooTW := pricer.WithSymbolSuffix(pricer.NewYahooPricer(client), ".TW")
	forexP := pricer.NewExchangeRatePricer(client, cfg.ExchangeRateAPIKey)

	usChain := []pricer.Pricer{redstoneP, yahooP}
	twChain := []pricer.Pricer{twseP, yahooTW}

	return map[entity.Category][]pricer.Pricer{
		entity.CategoryCrypto:  {binanceP, bybitP, hyperliquidP, redstoneP},
		entity.CategoryUSStock: usChain,
		entity.CategoryUSETF:   usChain,
		entity.CategoryTWStock: twChain,
		entity.CategoryTWETF:   twChain,
		entity.CategoryForex:   {forexP},
	}
}

// buildPushPath picks the stream provider and its feed-id resolution.
func buildPushPath(cfg config.Config) (pricer.StreamPricer, streamer.FeedFunc) {
	switch cfg.PushProvider {
	case "binance-ws":
		return pricer.NewBinanceStreamer(), func(ins entity.Instrument) (string, error) {
			return pricer.BinancePair(ins.Symbol), nil
		}
	default:
		feeds := make(map[string]string, len(cfg.PythFeeds))
		for symbol, id := range cfg.PythFeeds {
			feeds[strings.ToUpper(symbol)] = id
		}
		return pricer.NewPythStreamer(), func(ins entity.Instrument) (string, error) {
			id, ok := feeds[strings.ToUpper(ins.Symbol)]
			if !ok {
				return "", errors.Errorf("no pyth feed id configured for %s", ins.Symbol)
			}
			return id, nil
		}
	}
}
