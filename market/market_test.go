package market

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/models"
)

type fakeQuotes struct {
	failing  map[string]bool
	inFlight int32
	peak     int32
}

func (f *fakeQuotes) StockQuote(_ context.Context, symbol string) (models.AssetQuote, bool) {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&f.inFlight, -1)
	if f.failing[symbol] {
		return models.AssetQuote{}, false
	}
	return models.AssetQuote{Ticker: symbol}, true
}

func (f *fakeQuotes) ForexQuote(_ context.Context, from, to string) (models.AssetQuote, bool) {
	if f.failing[from+"/"+to] {
		return models.AssetQuote{}, false
	}
	return models.AssetQuote{Ticker: from + "/" + to}, true
}

func (f *fakeQuotes) CryptoQuote(_ context.Context, symbol, market string) (models.AssetQuote, bool) {
	return models.AssetQuote{Ticker: symbol + "/" + market}, true
}

func TestAggregateDropsOnlyFailures(t *testing.T) {
	var stocks []string
	failing := map[string]bool{}
	for i := 0; i < 12; i++ {
		s := fmt.Sprintf("S%d", i)
		stocks = append(stocks, s)
		if i%4 == 0 {
			failing[s] = true
		}
	}
	failing["GBP/USD"] = true
	src := &fakeQuotes{failing: failing}
	agg := NewAggregator(src, config.WatchlistConfig{
		Stocks:  stocks,
		Forex:   []string{"EUR/USD", "GBP/USD"},
		Crypto:  []string{"BTC/USD", "ETH/USD"},
		Workers: 5,
	}, nil)

	out := agg.AggregateWatchlist(context.Background())
	// 12 stocks with 3 failing, 1 of 2 forex, 2 crypto
	if len(out) != 9+1+2 {
		t.Fatalf("expected 12 quotes, got %d: %+v", len(out), out)
	}
	tail := out[len(out)-3:]
	if tail[0].Ticker != "EUR/USD" || tail[1].Ticker != "BTC/USD" || tail[2].Ticker != "ETH/USD" {
		t.Fatalf("forex and crypto out of order: %+v", tail)
	}
	if peak := atomic.LoadInt32(&src.peak); peak > 5 {
		t.Fatalf("worker limit exceeded: %d in flight", peak)
	}
}

func TestAggregateTotalFailure(t *testing.T) {
	src := &fakeQuotes{failing: map[string]bool{"IBM": true}}
	agg := NewAggregator(src, config.WatchlistConfig{Stocks: []string{"IBM"}}, nil)
	if out := agg.AggregateWatchlist(context.Background()); len(out) != 0 {
		t.Fatalf("expected empty result, got %+v", out)
	}
}

type fakeIndicators map[string]map[string]any

func (f fakeIndicators) IndicatorSeries(_ context.Context, _, function, _ string, _ int, _ string) (map[string]any, bool) {
	p, ok := f[function]
	return p, ok
}

func TestParseTechnicalIndicators(t *testing.T) {
	src := fakeIndicators{
		"RSI": {"Technical Analysis: RSI": map[string]any{
			"2024-01-01": map[string]any{"RSI": "40.0"},
			"2024-01-03": map[string]any{"RSI": "61.25"},
		}},
		"MACD": {"Technical Analysis: MACD": map[string]any{
			"2024-01-03": map[string]any{"MACD": "1.5", "MACD_Signal": "1.1", "MACD_Hist": "0.4"},
		}},
	}
	got := ParseTechnicalIndicators(context.Background(), src, "IBM")
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %+v", got)
	}
	if got[0].Name != "RSI" || got[0].Value != 61.25 || got[0].AsOf != "2024-01-03" {
		t.Fatalf("unexpected RSI sample %+v", got[0])
	}
	if got[1].Name != "MACD" || got[2].Name != "MACD_Signal" || got[2].Value != 1.1 {
		t.Fatalf("unexpected MACD samples %+v", got[1:])
	}
}

func TestLatestIndicatorMissingSection(t *testing.T) {
	if got := LatestIndicator(map[string]any{"Note": "limit"}, "RSI", "RSI"); got != nil {
		t.Fatalf("expected no samples, got %+v", got)
	}
	bad := map[string]any{"Technical Analysis: RSI": map[string]any{"2024-01-01": map[string]any{"RSI": "n/a"}}}
	if got := LatestIndicator(bad, "RSI", "RSI"); len(got) != 0 {
		t.Fatalf("unparsable value should be skipped, got %+v", got)
	}
}
