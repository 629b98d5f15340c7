// Package alphavantage is a small client for the Alpha Vantage query API.
// Every call absorbs its own failures: it raises a notice on the request
// context and reports (zero, false) instead of returning an error.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
	"github.com/mohammad-safakhou/finassist/models"
)

const (
	DefaultEndpoint = "https://www.alphavantage.co/query"

	StockSeriesKey  = "Time Series (Daily)"
	ForexSeriesKey  = "Time Series FX (Daily)"
	CryptoSeriesKey = "Time Series (Digital Currency Daily)"

	OpenField  = "1. open"
	CloseField = "4. close"
)

// ErrNoCredential is returned when the client has no API key.
var ErrNoCredential = errors.New("missing Alpha Vantage API key")

// APIError is a failure reported by the provider, either through the HTTP
// status or through one of the "Error Message", "Note" or "Information"
// fields it uses instead of a status code.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("alphavantage: status %d", e.Status)
	}
	return fmt.Sprintf("alphavantage: %s", e.Message)
}

// Payload is a decoded top-level response object.
type Payload map[string]json.RawMessage

type Client struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
	Metrics  *telemetry.Metrics
}

// New builds a client from config. An empty API key is allowed; every call
// then reports the missing credential.
func New(cfg config.AlphaVantageConfig, metrics *telemetry.Metrics) *Client {
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
		APIKey:   cfg.APIKey,
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout, Transport: transport},
		Metrics:  metrics,
	}
}

// StockQuote returns the latest daily quote for symbol.
func (c *Client) StockQuote(ctx context.Context, symbol string) (models.AssetQuote, bool) {
	what := fmt.Sprintf("stock data for %s", symbol)
	payload, ok := c.fetchPayload(ctx, "stock", what, url.Values{
		"function": {"TIME_SERIES_DAILY"},
		"symbol":   {symbol},
	})
	if !ok {
		return models.AssetQuote{}, false
	}
	open, closePrice, _, ok := NormalizeDaily(payload, StockSeriesKey, OpenField, CloseField)
	if !ok {
		c.noData(ctx, "stock", what)
		return models.AssetQuote{}, false
	}
	return c.quote("stock", symbol, "$%.2f", open, closePrice)
}

// ForexQuote returns the latest daily rate for the from/to pair.
func (c *Client) ForexQuote(ctx context.Context, from, to string) (models.AssetQuote, bool) {
	ticker := from + "/" + to
	what := fmt.Sprintf("forex data for %s", ticker)
	payload, ok := c.fetchPayload(ctx, "forex", what, url.Values{
		"function":    {"FX_DAILY"},
		"from_symbol": {from},
		"to_symbol":   {to},
	})
	if !ok {
		return models.AssetQuote{}, false
	}
	open, closePrice, _, ok := NormalizeDaily(payload, ForexSeriesKey, OpenField, CloseField)
	if !ok {
		c.noData(ctx, "forex", what)
		return models.AssetQuote{}, false
	}
	return c.quote("forex", ticker, "$%.4f", open, closePrice)
}

// CryptoQuote returns the latest daily quote for symbol priced in market.
// Both the market-suffixed field names and the plain ones are accepted.
func (c *Client) CryptoQuote(ctx context.Context, symbol, market string) (models.AssetQuote, bool) {
	ticker := symbol + "/" + market
	what := fmt.Sprintf("crypto data for %s", ticker)
	payload, ok := c.fetchPayload(ctx, "crypto", what, url.Values{
		"function": {"DIGITAL_CURRENCY_DAILY"},
		"symbol":   {symbol},
		"market":   {market},
	})
	if !ok {
		return models.AssetQuote{}, false
	}
	open, closePrice, _, ok := NormalizeDaily(payload, CryptoSeriesKey,
		fmt.Sprintf("1a. open (%s)", market), fmt.Sprintf("4a. close (%s)", market))
	if !ok {
		open, closePrice, _, ok = NormalizeDaily(payload, CryptoSeriesKey, OpenField, CloseField)
	}
	if !ok {
		c.noData(ctx, "crypto", what)
		return models.AssetQuote{}, false
	}
	return c.quote("crypto", ticker, "$%.2f", open, closePrice)
}

// IndicatorSeries returns the raw payload of a technical indicator such as
// RSI, MACD, SMA, EMA, BBANDS or STOCHRSI. A period <= 0 is omitted.
func (c *Client) IndicatorSeries(ctx context.Context, symbol, function, interval string, period int, seriesType string) (map[string]any, bool) {
	params := url.Values{
		"function": {function},
		"symbol":   {symbol},
		"interval": {interval},
	}
	if period > 0 {
		params.Set("time_period", strconv.Itoa(period))
	}
	if seriesType != "" {
		params.Set("series_type", seriesType)
	}
	return c.fetchRaw(ctx, "indicator", fmt.Sprintf("%s for %s", function, symbol), params)
}

// Commodities returns the raw ALL_COMMODITIES index payload.
func (c *Client) Commodities(ctx context.Context, interval string) (map[string]any, bool) {
	if interval == "" {
		interval = "monthly"
	}
	return c.fetchRaw(ctx, "commodities", "commodities data", url.Values{
		"function": {"ALL_COMMODITIES"},
		"interval": {interval},
	})
}

func (c *Client) fetchPayload(ctx context.Context, call, what string, params url.Values) (Payload, bool) {
	body, ok := c.fetch(ctx, call, what, params)
	if !ok {
		return nil, false
	}
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.fail(ctx, call, what, fmt.Errorf("decode response: %w", err))
		return nil, false
	}
	return payload, true
}

func (c *Client) fetchRaw(ctx context.Context, call, what string, params url.Values) (map[string]any, bool) {
	body, ok := c.fetch(ctx, call, what, params)
	if !ok {
		return nil, false
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		c.fail(ctx, call, what, fmt.Errorf("decode response: %w", err))
		return nil, false
	}
	c.Metrics.ProviderCall("alphavantage", call, true)
	return raw, true
}

// fetch performs the request and records failures. Success is recorded by
// the caller once the payload has been normalised.
func (c *Client) fetch(ctx context.Context, call, what string, params url.Values) ([]byte, bool) {
	body, err := c.get(ctx, params)
	if errors.Is(err, ErrNoCredential) {
		c.Metrics.ProviderCall("alphavantage", call, false)
		notice.Errorf(ctx, "Missing Alpha Vantage API key (AV_API_KEY).")
		return nil, false
	}
	if err != nil {
		c.fail(ctx, call, what, err)
		return nil, false
	}
	return body, true
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrNoCredential
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apikey", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode}
	}

	var status struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch {
	case status.ErrorMessage != "":
		return nil, &APIError{Status: resp.StatusCode, Message: status.ErrorMessage}
	case status.Note != "":
		return nil, &APIError{Status: resp.StatusCode, Message: status.Note}
	case status.Information != "":
		return nil, &APIError{Status: resp.StatusCode, Message: status.Information}
	}
	return body, nil
}

func (c *Client) fail(ctx context.Context, call, what string, err error) {
	c.Metrics.ProviderCall("alphavantage", call, false)
	notice.Errorf(ctx, "Error fetching %s: %v", what, err)
}

func (c *Client) noData(ctx context.Context, call, what string) {
	c.fail(ctx, call, what, errors.New("no data in response"))
}

func (c *Client) quote(call, ticker, priceFormat string, open, closePrice float64) (models.AssetQuote, bool) {
	c.Metrics.ProviderCall("alphavantage", call, true)
	return models.AssetQuote{
		Ticker:         ticker,
		CurrentPrice:   fmt.Sprintf(priceFormat, closePrice),
		PriceChangePct: fmt.Sprintf("%.2f%%", (closePrice-open)/open*100),
	}, true
}

// NormalizeDaily reads the latest entry of a daily series and returns its
// open and close. ok is false when the series key, the fields or a usable
// open price are missing.
func NormalizeDaily(payload Payload, seriesKey, openField, closeField string) (open, closePrice float64, date string, ok bool) {
	raw, found := payload[seriesKey]
	if !found {
		return 0, 0, "", false
	}
	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil || len(series) == 0 {
		return 0, 0, "", false
	}
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	date = LatestDate(keys)
	day := series[date]

	openStr, hasOpen := day[openField]
	closeStr, hasClose := day[closeField]
	if !hasOpen || !hasClose {
		return 0, 0, "", false
	}
	open, err := strconv.ParseFloat(strings.TrimSpace(openStr), 64)
	if err != nil || open == 0 {
		return 0, 0, "", false
	}
	closePrice, err = strconv.ParseFloat(strings.TrimSpace(closeStr), 64)
	if err != nil {
		return 0, 0, "", false
	}
	return open, closePrice, date, true
}

// LatestDate returns the lexicographically greatest key, which for ISO dates
// is the most recent one.
func LatestDate(keys []string) string {
	latest := ""
	for _, k := range keys {
		if k > latest {
			latest = k
		}
	}
	return latest
}
