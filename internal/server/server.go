package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
)

// AssetAggregator refreshes the asset table.
type AssetAggregator interface {
	AggregateWatchlist(ctx context.Context) []models.AssetQuote
}

// IndicatorFetcher returns the latest technical indicators for a symbol.
type IndicatorFetcher interface {
	Indicators(ctx context.Context, symbol string) []models.IndicatorSample
}

// CommodityFetcher returns the raw commodities feed.
type CommodityFetcher interface {
	Commodities(ctx context.Context, interval string) (map[string]any, bool)
}

// NewsFetcher returns recent finance headlines.
type NewsFetcher interface {
	FinanceNews(ctx context.Context, n int) []models.Article
}

// ChatResponder answers one chat utterance for a session.
type ChatResponder interface {
	Respond(ctx context.Context, sess session.Session, utterance string) (models.ChatTurn, models.ChatTurn, error)
}

// Deps are the components served over HTTP.
type Deps struct {
	Sessions       session.Store
	SessionTTL     time.Duration
	Aggregator     AssetAggregator
	Indicators     IndicatorFetcher
	Commodities    CommodityFetcher
	News           NewsFetcher
	Chat           ChatResponder
	IndexBuilder   docindex.IndexBuilder
	DocumentFolder string
	BuildOnStart   bool
	Gatherer       prometheus.Gatherer
}

// New builds the echo instance with middleware and every route.
func New(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	if deps.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")

	sh := &SessionsHandler{Deps: deps}
	sh.Register(api.Group("/sessions"))

	ah := &AssetsHandler{Indicators: deps.Indicators, Commodities: deps.Commodities}
	ah.Register(api.Group("/assets"))

	nh := &NewsHandler{News: deps.News}
	nh.Register(api.Group("/news"))

	bh := &BudgetHandler{}
	bh.Register(api.Group("/budget"))

	return e
}

// Run serves the API on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, deps Deps) error {
	e := New(deps)
	if addr == "" {
		addr = ":10001"
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

// withNotices returns a request context whose notices go to a fresh
// collector, for endpoints that are not bound to a session.
func withNotices(c echo.Context) (context.Context, *notice.Collector) {
	col := notice.NewCollector(nil)
	return notice.NewContext(c.Request().Context(), col), col
}
