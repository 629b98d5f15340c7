package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug      bool          `mapstructure:"debug"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// ProvidersConfig groups the external API credentials and endpoints
type ProvidersConfig struct {
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	NewsAPI      NewsAPIConfig      `mapstructure:"newsapi"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Yahoo        YahooConfig        `mapstructure:"yahoo"`
}

// AlphaVantageConfig contains market data provider settings
type AlphaVantageConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Proxy    string        `mapstructure:"proxy"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Query    string        `mapstructure:"query"`
	Language string        `mapstructure:"language"`
	SortBy   string        `mapstructure:"sort_by"`
	PageSize int           `mapstructure:"page_size"`
	Lookback time.Duration `mapstructure:"lookback"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig contains text generation and embedding settings
type OpenAIConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	EmbedBatchSize  int           `mapstructure:"embed_batch_size"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// YahooConfig contains the historical price source settings
type YahooConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Proxy    string        `mapstructure:"proxy"`
}

// WatchlistConfig lists the assets fetched on every refresh.
// Pairs are written "BASE/QUOTE".
type WatchlistConfig struct {
	Stocks  []string `mapstructure:"stocks"`
	Forex   []string `mapstructure:"forex"`
	Crypto  []string `mapstructure:"crypto"`
	Workers int      `mapstructure:"workers"`
}

// Pair is a parsed "BASE/QUOTE" entry.
type Pair struct {
	Base  string
	Quote string
}

// ForexPairs returns the parsed forex pairs. Call Validate first.
func (w WatchlistConfig) ForexPairs() []Pair { return mustPairs(w.Forex) }

// CryptoPairs returns the parsed crypto pairs. Call Validate first.
func (w WatchlistConfig) CryptoPairs() []Pair { return mustPairs(w.Crypto) }

// Normalize upper-cases symbols and drops blanks.
func (w WatchlistConfig) Normalize() WatchlistConfig {
	w.Stocks = cleanSymbols(w.Stocks)
	w.Forex = cleanSymbols(w.Forex)
	w.Crypto = cleanSymbols(w.Crypto)
	if w.Workers <= 0 {
		w.Workers = 5
	}
	return w
}

func (w WatchlistConfig) Validate() error {
	for _, p := range append(append([]string{}, w.Forex...), w.Crypto...) {
		if _, err := ParsePair(p); err != nil {
			return fmt.Errorf("watchlist: %w", err)
		}
	}
	return nil
}

// ParsePair splits "BASE/QUOTE".
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(strings.TrimSpace(s), "/")
	base, quote = strings.TrimSpace(base), strings.TrimSpace(quote)
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, want BASE/QUOTE", s)
	}
	return Pair{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}, nil
}

func mustPairs(in []string) []Pair {
	out := make([]Pair, 0, len(in))
	for _, s := range in {
		if p, err := ParsePair(s); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func cleanSymbols(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DocumentsConfig controls the local document index
type DocumentsConfig struct {
	Folder       string   `mapstructure:"folder"`
	Extensions   []string `mapstructure:"extensions"`
	ChunkSize    int      `mapstructure:"chunk_size"`
	ChunkOverlap int      `mapstructure:"chunk_overlap"`
	Hybrid       bool     `mapstructure:"hybrid"`
	BuildOnStart bool     `mapstructure:"build_on_start"`
}

func (d DocumentsConfig) Validate() error {
	if d.ChunkSize <= 0 {
		return fmt.Errorf("documents.chunk_size must be greater than zero")
	}
	if d.ChunkOverlap < 0 || d.ChunkOverlap >= d.ChunkSize {
		return fmt.Errorf("documents.chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// ChatConfig controls the chat responder
type ChatConfig struct {
	TopK          int    `mapstructure:"top_k"`
	HistoryRange  string `mapstructure:"history_range"`
	SystemPrompt  string `mapstructure:"system_prompt"`
	FallbackReply string `mapstructure:"fallback_reply"`
}

// StorageConfig contains session storage settings
type StorageConfig struct {
	Session SessionStoreConfig `mapstructure:"session"`
	Redis   RedisConfig        `mapstructure:"redis"`
}

// SessionStoreConfig selects the session backend: inmemory or redis.
type SessionStoreConfig struct {
	Type string `mapstructure:"type"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

func (s StorageConfig) Validate() error {
	switch s.Session.Type {
	case "inmemory":
		return nil
	case "redis":
		return s.Redis.Validate()
	default:
		return fmt.Errorf("storage.session.type must be inmemory or redis, got %q", s.Session.Type)
	}
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.session_ttl", 24*time.Hour)
	v.SetDefault("server.address", ":10001")

	v.SetDefault("providers.alphavantage.endpoint", "https://www.alphavantage.co/query")
	v.SetDefault("providers.alphavantage.timeout", 30*time.Second)
	v.SetDefault("providers.newsapi.endpoint", "https://newsapi.org/v2/everything")
	v.SetDefault("providers.newsapi.query", "finance OR economy")
	v.SetDefault("providers.newsapi.language", "en")
	v.SetDefault("providers.newsapi.sort_by", "relevancy")
	v.SetDefault("providers.newsapi.page_size", 3)
	v.SetDefault("providers.newsapi.lookback", 7*24*time.Hour)
	v.SetDefault("providers.newsapi.timeout", 30*time.Second)
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("providers.openai.temperature", 0.2)
	v.SetDefault("providers.openai.max_tokens", 1024)
	v.SetDefault("providers.openai.embed_batch_size", 64)
	v.SetDefault("providers.openai.timeout", 60*time.Second)
	v.SetDefault("providers.yahoo.endpoint", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("providers.yahoo.timeout", 30*time.Second)

	v.SetDefault("watchlist.stocks", []string{"IBM", "AAPL", "GOOGL"})
	v.SetDefault("watchlist.forex", []string{"EUR/USD", "GBP/USD"})
	v.SetDefault("watchlist.crypto", []string{"BTC/USD", "ETH/USD"})
	v.SetDefault("watchlist.workers", 5)

	v.SetDefault("documents.folder", "data")
	v.SetDefault("documents.extensions", []string{".pdf", ".txt", ".md", ".html", ".htm"})
	v.SetDefault("documents.chunk_size", 1000)
	v.SetDefault("documents.chunk_overlap", 200)
	v.SetDefault("documents.hybrid", true)
	v.SetDefault("documents.build_on_start", true)

	v.SetDefault("chat.top_k", 3)
	v.SetDefault("chat.history_range", "1y")
	v.SetDefault("chat.system_prompt", DefaultSystemPrompt)
	v.SetDefault("chat.fallback_reply", "Sorry, I could not generate a response right now.")

	v.SetDefault("storage.session.type", "inmemory")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)

	v.SetDefault("telemetry.enabled", true)
}

// DefaultSystemPrompt frames the assistant's replies.
const DefaultSystemPrompt = `You are a personal finance assistant. Answer the user's question clearly and concisely.
Use the provided document excerpts and the user's own financial notes when they are relevant.
If the excerpts do not cover the question, say so instead of inventing facts.
Do not give individualized legal or tax advice.`

// LoadConfig reads .env, the optional config file and FINASSIST_* environment
// variables. The bare AV_API_KEY, NEWS_API_KEY and OPENAI_API_KEY names are
// honoured as well. Missing API keys are not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("FINASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("providers.alphavantage.api_key", "FINASSIST_PROVIDERS_ALPHAVANTAGE_API_KEY", "AV_API_KEY")
	_ = v.BindEnv("providers.newsapi.api_key", "FINASSIST_PROVIDERS_NEWSAPI_API_KEY", "NEWS_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "FINASSIST_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Watchlist = cfg.Watchlist.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Watchlist.Validate(); err != nil {
		return err
	}
	if err := c.Documents.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("chat.top_k must be greater than zero")
	}
	return nil
}
