package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
	"github.com/mohammad-safakhou/finassist/models"
)

const DefaultEndpoint = "https://query1.finance.yahoo.com/v8/finance/chart"

// Client fetches daily closing prices from the Yahoo Finance chart API.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Metrics  *telemetry.Metrics
}

func New(cfg config.YahooConfig, metrics *telemetry.Metrics) *Client {
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		HTTP:     &http.Client{Timeout: timeout, Transport: transport},
		Metrics:  metrics,
	}
}

// chart is the part of the chart API response that is used.
type chart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCloses returns the daily closes of ticker over rng ("1y", "6mo", ...),
// oldest first. An unknown ticker yields an empty series, not an error.
func (c *Client) DailyCloses(ctx context.Context, ticker, rng string) ([]models.ChartPoint, error) {
	if rng == "" {
		rng = "1y"
	}
	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", c.Endpoint, url.PathEscape(ticker), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Metrics.ProviderCall("yahoo", "chart", false)
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Metrics.ProviderCall("yahoo", "chart", false)
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		c.Metrics.ProviderCall("yahoo", "chart", false)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.Metrics.ProviderCall("yahoo", "chart", false)
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}

	var ch chart
	if err := json.Unmarshal(body, &ch); err != nil {
		c.Metrics.ProviderCall("yahoo", "chart", false)
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if ch.Chart.Error != nil {
		c.Metrics.ProviderCall("yahoo", "chart", false)
		return nil, fmt.Errorf("yahoo api error: %s", ch.Chart.Error.Description)
	}
	c.Metrics.ProviderCall("yahoo", "chart", true)
	if len(ch.Chart.Result) == 0 || len(ch.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := ch.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	type bar struct {
		ts    int64
		close float64
	}
	bars := make([]bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // null bars (holidays etc.)
		}
		bars = append(bars, bar{ts: ts, close: *closes[i]})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].ts < bars[j].ts })

	points := make([]models.ChartPoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, models.ChartPoint{
			Date:  time.Unix(b.ts, 0).UTC().Format("2006-01-02"),
			Close: b.close,
		})
	}
	return points, nil
}
