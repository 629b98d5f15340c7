package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type NewsHandler struct {
	News NewsFetcher
}

func (h *NewsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
}

func (h *NewsHandler) list(c echo.Context) error {
	if h.News == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "news not configured")
	}
	n := 0
	if raw := c.QueryParam("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be between 1 and 100")
		}
		n = v
	}
	ctx, col := withNotices(c)
	articles := h.News.FinanceNews(ctx, n)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"articles": articles,
		"notices":  col.Drain(),
	})
}
