package market

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
	"github.com/mohammad-safakhou/finassist/models"
)

const defaultWorkers = 5

// QuoteSource is the part of the market data client the aggregator needs.
type QuoteSource interface {
	StockQuote(ctx context.Context, symbol string) (models.AssetQuote, bool)
	ForexQuote(ctx context.Context, from, to string) (models.AssetQuote, bool)
	CryptoQuote(ctx context.Context, symbol, market string) (models.AssetQuote, bool)
}

type Aggregator struct {
	Quotes    QuoteSource
	Watchlist config.WatchlistConfig
	Metrics   *telemetry.Metrics
}

func NewAggregator(quotes QuoteSource, watchlist config.WatchlistConfig, metrics *telemetry.Metrics) *Aggregator {
	return &Aggregator{Quotes: quotes, Watchlist: watchlist, Metrics: metrics}
}

// AggregateWatchlist fetches every configured asset. Stocks are fetched on a
// bounded pool and kept in completion order; forex and crypto pairs follow,
// one at a time, in configured order. Unavailable assets are dropped, so an
// empty result means nothing could be fetched.
func (a *Aggregator) AggregateWatchlist(ctx context.Context) []models.AssetQuote {
	started := time.Now()

	workers := a.Watchlist.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var (
		mu  sync.Mutex
		out []models.AssetQuote
		g   errgroup.Group
	)
	g.SetLimit(workers)
	for _, symbol := range a.Watchlist.Stocks {
		symbol := symbol
		g.Go(func() error {
			q, ok := a.Quotes.StockQuote(ctx, symbol)
			if !ok {
				return nil
			}
			mu.Lock()
			out = append(out, q)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range a.Watchlist.ForexPairs() {
		if q, ok := a.Quotes.ForexQuote(ctx, p.Base, p.Quote); ok {
			out = append(out, q)
		}
	}
	for _, p := range a.Watchlist.CryptoPairs() {
		if q, ok := a.Quotes.CryptoQuote(ctx, p.Base, p.Quote); ok {
			out = append(out, q)
		}
	}

	a.Metrics.Aggregated(started, len(out))
	return out
}
