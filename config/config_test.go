package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AV_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Watchlist.Workers != 5 {
		t.Fatalf("expected 5 workers, got %d", cfg.Watchlist.Workers)
	}
	if len(cfg.Watchlist.Stocks) != 3 || cfg.Watchlist.Stocks[0] != "IBM" {
		t.Fatalf("unexpected default stocks: %v", cfg.Watchlist.Stocks)
	}
	if cfg.Documents.ChunkSize != 1000 || cfg.Documents.ChunkOverlap != 200 {
		t.Fatalf("unexpected chunking defaults: %+v", cfg.Documents)
	}
	if cfg.Providers.NewsAPI.Lookback != 7*24*time.Hour {
		t.Fatalf("unexpected news lookback %s", cfg.Providers.NewsAPI.Lookback)
	}
	if cfg.Providers.AlphaVantage.APIKey != "" {
		t.Fatalf("missing key should stay empty, got %q", cfg.Providers.AlphaVantage.APIKey)
	}
}

func TestLoadConfigBareEnvKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AV_API_KEY", "av-secret")
	t.Setenv("NEWS_API_KEY", "news-secret")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Providers.AlphaVantage.APIKey != "av-secret" {
		t.Fatalf("AV_API_KEY not honoured: %q", cfg.Providers.AlphaVantage.APIKey)
	}
	if cfg.Providers.NewsAPI.APIKey != "news-secret" {
		t.Fatalf("NEWS_API_KEY not honoured: %q", cfg.Providers.NewsAPI.APIKey)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
watchlist:
  stocks: [" msft ", "tsla"]
  forex: ["usd/jpy"]
  crypto: []
  workers: 2
documents:
  chunk_size: 500
  chunk_overlap: 50
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Watchlist.Stocks; len(got) != 2 || got[0] != "MSFT" || got[1] != "TSLA" {
		t.Fatalf("unexpected stocks: %v", got)
	}
	pairs := cfg.Watchlist.ForexPairs()
	if len(pairs) != 1 || pairs[0].Base != "USD" || pairs[0].Quote != "JPY" {
		t.Fatalf("unexpected forex pairs: %+v", pairs)
	}
	if cfg.Watchlist.Workers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Watchlist.Workers)
	}
}

func TestDocumentsValidate(t *testing.T) {
	if err := (DocumentsConfig{ChunkSize: 100, ChunkOverlap: 100}).Validate(); err == nil {
		t.Fatalf("overlap equal to size should be rejected")
	}
	if err := (DocumentsConfig{ChunkSize: 100, ChunkOverlap: 20}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParsePair(t *testing.T) {
	if _, err := ParsePair("EURUSD"); err == nil {
		t.Fatalf("expected error for pair without slash")
	}
	p, err := ParsePair(" btc / usd ")
	if err != nil {
		t.Fatalf("ParsePair: %v", err)
	}
	if p.Base != "BTC" || p.Quote != "USD" {
		t.Fatalf("unexpected pair %+v", p)
	}
}

func TestStorageValidate(t *testing.T) {
	if err := (StorageConfig{Session: SessionStoreConfig{Type: "bolt"}}).Validate(); err == nil {
		t.Fatalf("expected unknown store type to fail")
	}
	s := StorageConfig{Session: SessionStoreConfig{Type: "redis"}}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected redis without host to fail")
	}
}
