package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/finassist/internal/budgeting"
)

type BudgetHandler struct{}

func (h *BudgetHandler) Register(g *echo.Group) {
	g.POST("", h.evaluate)
	g.GET("/categories", h.categories)
}

func (h *BudgetHandler) evaluate(c echo.Context) error {
	var in budgeting.Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := in.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, budgeting.Evaluate(in))
}

func (h *BudgetHandler) categories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"categories": budgeting.Categories})
}
