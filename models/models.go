package models

import "time"

// AssetQuote is one row of the asset table. Prices are pre-formatted for display.
type AssetQuote struct {
	Ticker         string `json:"ticker"`
	CurrentPrice   string `json:"current_price"`
	PriceChangePct string `json:"price_change_pct"`
}

// IndicatorSample is the latest value of a named technical indicator.
type IndicatorSample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	AsOf  string  `json:"as_of"`
}

// DocumentChunk is a piece of a local document together with its embedding.
type DocumentChunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// SearchHit is a ranked chunk returned by the document index.
type SearchHit struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChartPoint is one daily close of a price history.
type ChartPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// ChatTurn is one entry of the session transcript.
type ChatTurn struct {
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	Chart     []ChartPoint `json:"chart,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Article is a news headline.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}
