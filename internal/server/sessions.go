package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
)

// SessionsHandler serves everything that lives in a user session: the asset
// table, financial notes, the document index, the chat and notices.
type SessionsHandler struct {
	Deps
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/assets", h.assets)
	g.POST("/:id/assets/refresh", h.refreshAssets)
	g.PUT("/:id/notes", h.putNotes)
	g.GET("/:id/notes", h.getNotes)
	g.POST("/:id/index/rebuild", h.rebuildIndex)
	g.GET("/:id/chat", h.transcript)
	g.POST("/:id/chat", h.chat)
	g.GET("/:id/notices", h.notices)
}

type assetsResponse struct {
	Quotes      []models.AssetQuote `json:"quotes"`
	RefreshedAt *time.Time          `json:"refreshed_at,omitempty"`
	Message     string              `json:"message,omitempty"`
	Notices     []notice.Notice     `json:"notices,omitempty"`
}

func (h *SessionsHandler) ttl() time.Duration {
	if h.SessionTTL <= 0 {
		return 24 * time.Hour
	}
	return h.SessionTTL
}

func (h *SessionsHandler) session(c echo.Context) (session.Session, error) {
	sess, err := h.Sessions.GetSession(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return sess, nil
}

func (h *SessionsHandler) create(c echo.Context) error {
	sess, err := h.Sessions.EnsureSession("", h.ttl())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	indexed := false
	if h.BuildOnStart && h.IndexBuilder != nil {
		ctx := notice.NewContext(c.Request().Context(), sess)
		indexed = sess.Index().Ensure(ctx, h.IndexBuilder, h.DocumentFolder, false) != nil
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":         sess.ID(),
		"expires_at": sess.ExpiresAt(),
		"indexed":    indexed,
	})
}

func (h *SessionsHandler) delete(c echo.Context) error {
	err := h.Sessions.DeleteSession(c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionsHandler) assets(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	quotes, at, err := sess.Quotes()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, newAssetsResponse(quotes, at, nil))
}

func (h *SessionsHandler) refreshAssets(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if h.Aggregator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "market data not configured")
	}
	ctx := notice.NewContext(c.Request().Context(), sess)
	quotes := h.Aggregator.AggregateWatchlist(ctx)
	if err := sess.SetQuotes(quotes); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	_, at, err := sess.Quotes()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	notices, _ := sess.DrainNotices()
	return c.JSON(http.StatusOK, newAssetsResponse(quotes, at, notices))
}

func newAssetsResponse(quotes []models.AssetQuote, at time.Time, notices []notice.Notice) assetsResponse {
	resp := assetsResponse{Quotes: quotes, Notices: notices}
	if resp.Quotes == nil {
		resp.Quotes = []models.AssetQuote{}
	}
	if !at.IsZero() {
		resp.RefreshedAt = &at
	}
	if len(quotes) == 0 {
		resp.Message = "no data"
	}
	return resp
}

func (h *SessionsHandler) putNotes(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := sess.SetNotes(req.Notes); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"notes": req.Notes})
}

func (h *SessionsHandler) getNotes(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	notes, err := sess.Notes()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"notes": notes})
}

func (h *SessionsHandler) rebuildIndex(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if h.IndexBuilder == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "document index not configured")
	}
	ctx := notice.NewContext(c.Request().Context(), sess)
	ix := sess.Index().Ensure(ctx, h.IndexBuilder, h.DocumentFolder, true)
	notices, _ := sess.DrainNotices()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rebuilt": ix != nil,
		"chunks":  sess.Index().Current().Len(),
		"notices": notices,
	})
}

func (h *SessionsHandler) transcript(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	turns, err := sess.Transcript()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"turns": turns})
}

func (h *SessionsHandler) chat(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if h.Chat == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "chat not configured")
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	user, assistant, err := h.Chat.Respond(c.Request().Context(), sess, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	notices, _ := sess.DrainNotices()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":      user,
		"assistant": assistant,
		"notices":   notices,
	})
}

func (h *SessionsHandler) notices(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	notices, err := sess.DrainNotices()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if notices == nil {
		notices = []notice.Notice{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notices": notices})
}
