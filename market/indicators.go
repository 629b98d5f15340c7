package market

import (
	"context"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/finassist/market/alphavantage"
	"github.com/mohammad-safakhou/finassist/models"
)

// IndicatorSource returns raw technical indicator payloads.
type IndicatorSource interface {
	IndicatorSeries(ctx context.Context, symbol, function, interval string, period int, seriesType string) (map[string]any, bool)
}

// ParseTechnicalIndicators fetches RSI(10) and MACD on daily closes and
// returns their most recent values. Unavailable indicators are left out.
func ParseTechnicalIndicators(ctx context.Context, src IndicatorSource, symbol string) []models.IndicatorSample {
	var out []models.IndicatorSample
	if payload, ok := src.IndicatorSeries(ctx, symbol, "RSI", "daily", 10, "close"); ok {
		out = append(out, LatestIndicator(payload, "RSI", "RSI")...)
	}
	if payload, ok := src.IndicatorSeries(ctx, symbol, "MACD", "daily", 0, "close"); ok {
		out = append(out, LatestIndicator(payload, "MACD", "MACD", "MACD_Signal")...)
	}
	return out
}

// Indicators binds ParseTechnicalIndicators to a source.
type Indicators struct {
	Source IndicatorSource
}

func (i Indicators) Indicators(ctx context.Context, symbol string) []models.IndicatorSample {
	return ParseTechnicalIndicators(ctx, i.Source, symbol)
}

// LatestIndicator reads the "Technical Analysis: <function>" section of
// payload and returns one sample per field found on its latest date.
func LatestIndicator(payload map[string]any, function string, fields ...string) []models.IndicatorSample {
	section, ok := payload["Technical Analysis: "+function].(map[string]any)
	if !ok || len(section) == 0 {
		return nil
	}
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	date := alphavantage.LatestDate(keys)
	values, ok := section[date].(map[string]any)
	if !ok {
		return nil
	}

	var out []models.IndicatorSample
	for _, field := range fields {
		v, ok := toFloat(values[field])
		if !ok {
			continue
		}
		out = append(out, models.IndicatorSample{Name: field, Value: v, AsOf: date})
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}
