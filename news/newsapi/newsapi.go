package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
)

const DefaultEndpoint = "https://newsapi.org/v2/everything"

// ErrRateLimited is returned when NewsAPI rejects a request for exceeding the plan's quota.
var ErrRateLimited = errors.New("newsapi: rate limited")

// ErrNoCredential is returned when no API key is configured.
var ErrNoCredential = errors.New("newsapi: missing API key")

// APIError is any other non-OK answer.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsapi error: status %d, code %q: %s", e.Status, e.Code, e.Message)
}

type Article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type response struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// Query holds the /everything parameters. Zero values are omitted.
type Query struct {
	Q        string
	From     time.Time
	To       time.Time
	Language string
	SortBy   string // relevancy, popularity, publishedAt
	PageSize int
}

type NewsAPI struct {
	APIKey   string
	Endpoint string
	HTTP     *http.Client
	Metrics  *telemetry.Metrics
}

func New(cfg config.NewsAPIConfig, metrics *telemetry.Metrics) *NewsAPI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &NewsAPI{
		APIKey:   cfg.APIKey,
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: timeout},
		Metrics:  metrics,
	}
}

// Everything runs one search against the /everything endpoint.
func (n *NewsAPI) Everything(ctx context.Context, q Query) ([]Article, error) {
	articles, err := n.everything(ctx, q)
	n.Metrics.ProviderCall("newsapi", "everything", err == nil)
	return articles, err
}

func (n *NewsAPI) everything(ctx context.Context, q Query) ([]Article, error) {
	if n.APIKey == "" {
		return nil, ErrNoCredential
	}

	params := url.Values{}
	params.Add("q", q.Q)
	if !q.From.IsZero() {
		params.Add("from", q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		params.Add("to", q.To.Format("2006-01-02"))
	}
	if q.Language != "" {
		params.Add("language", q.Language)
	}
	if q.SortBy != "" {
		params.Add("sortBy", q.SortBy)
	}
	if q.PageSize > 0 {
		params.Add("pageSize", strconv.Itoa(q.PageSize))
	}

	reqURL := fmt.Sprintf("%s?%s", n.Endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", n.APIKey)

	client := n.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result response
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode == http.StatusTooManyRequests || result.Code == "rateLimited" {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK || (decodeErr == nil && result.Status == "error") {
		return nil, &APIError{Status: resp.StatusCode, Code: result.Code, Message: result.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	return result.Articles, nil
}
