package main

import (
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mohammad-safakhou/finassist/chat"
	"github.com/mohammad-safakhou/finassist/config"
	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/telemetry"
	"github.com/mohammad-safakhou/finassist/market"
	"github.com/mohammad-safakhou/finassist/market/alphavantage"
	"github.com/mohammad-safakhou/finassist/market/yahoo"
	"github.com/mohammad-safakhou/finassist/news"
	"github.com/mohammad-safakhou/finassist/news/newsapi"
	"github.com/mohammad-safakhou/finassist/provider"
	"github.com/mohammad-safakhou/finassist/session"
	"github.com/mohammad-safakhou/finassist/session/inmemory"
	redis_session "github.com/mohammad-safakhou/finassist/session/redis"
	"github.com/mohammad-safakhou/finassist/tools/embedding"
)

// app wires every component from one config.
type app struct {
	cfg        *config.Config
	registry   *prometheus.Registry
	metrics    *telemetry.Metrics
	market     *alphavantage.Client
	aggregator *market.Aggregator
	news       *news.Retriever
	builder    *docindex.Builder
	embedder   *embedding.Embedding
	responder  *chat.Responder
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if cfg.Telemetry.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = telemetry.NewMetrics(a.registry)
	}

	a.market = alphavantage.New(cfg.Providers.AlphaVantage, a.metrics)
	a.aggregator = market.NewAggregator(a.market, cfg.Watchlist, a.metrics)
	a.news = news.NewRetriever(newsapi.New(cfg.Providers.NewsAPI, a.metrics), cfg.Providers.NewsAPI)

	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	a.embedder = embedding.NewEmbedding(llm, cfg.Providers.OpenAI.EmbedBatchSize)
	a.builder = docindex.NewBuilder(a.embedder, cfg.Documents, a.metrics)
	a.responder = chat.NewResponder(llm, a.embedder, yahoo.New(cfg.Providers.Yahoo, a.metrics), cfg.Chat, a.metrics)
	return a, nil
}

func (a *app) sessionStore() (session.Store, error) {
	logger := log.New(os.Stdout, "[SESSION] ", log.LstdFlags)
	switch session.StoreType(a.cfg.Storage.Session.Type) {
	case session.InMemoryStore:
		return inmemory.NewInMemorySessionStore(logger), nil
	case session.RedisStore:
		return redis_session.NewRedisSessionStore(a.cfg.Storage.Redis, logger), nil
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", a.cfg.Storage.Session.Type)
	}
}
