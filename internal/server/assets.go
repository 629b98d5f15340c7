package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// AssetsHandler serves market data that is not tied to a session.
type AssetsHandler struct {
	Indicators  IndicatorFetcher
	Commodities CommodityFetcher
}

func (h *AssetsHandler) Register(g *echo.Group) {
	g.GET("/commodities", h.commodities)
	g.GET("/:ticker/indicators", h.indicators)
}

func (h *AssetsHandler) indicators(c echo.Context) error {
	if h.Indicators == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "market data not configured")
	}
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ticker required")
	}
	ctx, col := withNotices(c)
	samples := h.Indicators.Indicators(ctx, ticker)
	resp := map[string]interface{}{
		"ticker":     ticker,
		"indicators": samples,
		"notices":    col.Drain(),
	}
	if len(samples) == 0 {
		resp["message"] = "no data"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AssetsHandler) commodities(c echo.Context) error {
	if h.Commodities == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "market data not configured")
	}
	ctx, col := withNotices(c)
	payload, ok := h.Commodities.Commodities(ctx, c.QueryParam("interval"))
	resp := map[string]interface{}{"notices": col.Drain()}
	if ok {
		resp["data"] = payload
	} else {
		resp["message"] = "no data"
	}
	return c.JSON(http.StatusOK, resp)
}
