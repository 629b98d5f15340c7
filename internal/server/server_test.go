package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/finassist/docindex"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
	"github.com/mohammad-safakhou/finassist/session"
	"github.com/mohammad-safakhou/finassist/session/inmemory"
)

type fakeAggregator struct {
	quotes []models.AssetQuote
}

func (f *fakeAggregator) AggregateWatchlist(ctx context.Context) []models.AssetQuote {
	if len(f.quotes) == 0 {
		notice.Errorf(ctx, "Error fetching stock data for IBM: boom")
	}
	return f.quotes
}

type fakeChat struct{}

func (fakeChat) Respond(_ context.Context, sess session.Session, utterance string) (models.ChatTurn, models.ChatTurn, error) {
	u := models.ChatTurn{Role: models.RoleUser, Content: utterance}
	a := models.ChatTurn{Role: models.RoleAssistant, Content: "echo: " + utterance}
	return u, a, sess.AppendTurns(u, a)
}

type fakeNews struct{ n int }

func (f *fakeNews) FinanceNews(ctx context.Context, n int) []models.Article {
	f.n = n
	notice.Warnf(ctx, "News API rate limit exceeded. Please try again later.")
	return []models.Article{}
}

type failingBuilder struct{}

func (failingBuilder) Build(context.Context, string) (*docindex.Index, error) {
	return nil, docindex.ErrNoDocuments
}

func newSession(t *testing.T, store session.Store) session.Session {
	t.Helper()
	sess, err := store.EnsureSession("", time.Hour)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	return sess
}

func sessionContext(e *echo.Echo, method, target, body, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues(id)
	return ctx, rec
}

func TestRefreshAssetsReplacesCache(t *testing.T) {
	e := echo.New()
	store := inmemory.NewInMemorySessionStore(nil)
	sess := newSession(t, store)
	agg := &fakeAggregator{quotes: []models.AssetQuote{{Ticker: "IBM", CurrentPrice: "$1.00", PriceChangePct: "0.00%"}}}
	h := &SessionsHandler{Deps: Deps{Sessions: store, Aggregator: agg}}

	ctx, rec := sessionContext(e, http.MethodGet, "/api/sessions/x/assets", "", sess.ID())
	if err := h.assets(ctx); err != nil {
		t.Fatalf("assets: %v", err)
	}
	var before assetsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &before)
	if before.Message != "no data" || before.RefreshedAt != nil {
		t.Fatalf("expected empty table before refresh, got %+v", before)
	}

	ctx, rec = sessionContext(e, http.MethodPost, "/api/sessions/x/assets/refresh", "", sess.ID())
	if err := h.refreshAssets(ctx); err != nil {
		t.Fatalf("refreshAssets: %v", err)
	}
	var after assetsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(after.Quotes) != 1 || after.RefreshedAt == nil || after.Message != "" {
		t.Fatalf("unexpected refresh response %+v", after)
	}

	agg.quotes = nil
	ctx, rec = sessionContext(e, http.MethodPost, "/api/sessions/x/assets/refresh", "", sess.ID())
	if err := h.refreshAssets(ctx); err != nil {
		t.Fatalf("refreshAssets: %v", err)
	}
	var empty assetsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &empty)
	if len(empty.Quotes) != 0 || empty.Message != "no data" || len(empty.Notices) != 1 {
		t.Fatalf("expected no data with a notice, got %+v", empty)
	}
}

func TestUnknownSession(t *testing.T) {
	e := echo.New()
	h := &SessionsHandler{Deps: Deps{Sessions: inmemory.NewInMemorySessionStore(nil)}}
	ctx, _ := sessionContext(e, http.MethodGet, "/api/sessions/nope/assets", "", "nope")
	err := h.assets(ctx)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestChatAndTranscript(t *testing.T) {
	e := echo.New()
	store := inmemory.NewInMemorySessionStore(nil)
	sess := newSession(t, store)
	h := &SessionsHandler{Deps: Deps{Sessions: store, Chat: fakeChat{}}}

	ctx, _ := sessionContext(e, http.MethodPost, "/api/sessions/x/chat", `{"message":""}`, sess.ID())
	var httpErr *echo.HTTPError
	if err := h.chat(ctx); !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %v", err)
	}

	ctx, rec := sessionContext(e, http.MethodPost, "/api/sessions/x/chat", `{"message":"price of TSLA"}`, sess.ID())
	if err := h.chat(ctx); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "echo: price of TSLA") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	ctx, rec = sessionContext(e, http.MethodGet, "/api/sessions/x/chat", "", sess.ID())
	if err := h.transcript(ctx); err != nil {
		t.Fatalf("transcript: %v", err)
	}
	var resp struct {
		Turns []models.ChatTurn `json:"turns"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %+v", resp.Turns)
	}
}

func TestRebuildIndexFailureKeepsNoIndex(t *testing.T) {
	e := echo.New()
	store := inmemory.NewInMemorySessionStore(nil)
	sess := newSession(t, store)
	h := &SessionsHandler{Deps: Deps{Sessions: store, IndexBuilder: failingBuilder{}, DocumentFolder: "data"}}

	ctx, rec := sessionContext(e, http.MethodPost, "/api/sessions/x/index/rebuild", "", sess.ID())
	if err := h.rebuildIndex(ctx); err != nil {
		t.Fatalf("rebuildIndex: %v", err)
	}
	var resp struct {
		Rebuilt bool `json:"rebuilt"`
		Chunks  int  `json:"chunks"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Rebuilt || resp.Chunks != 0 {
		t.Fatalf("unexpected rebuild response %s", rec.Body.String())
	}
}

func TestNotesRoundTrip(t *testing.T) {
	e := echo.New()
	store := inmemory.NewInMemorySessionStore(nil)
	sess := newSession(t, store)
	h := &SessionsHandler{Deps: Deps{Sessions: store}}

	ctx, _ := sessionContext(e, http.MethodPut, "/api/sessions/x/notes", `{"notes":"rent is 1200"}`, sess.ID())
	if err := h.putNotes(ctx); err != nil {
		t.Fatalf("putNotes: %v", err)
	}
	if notes, _ := sess.Notes(); notes != "rent is 1200" {
		t.Fatalf("notes not stored: %q", notes)
	}
}

func TestNewsEndpoint(t *testing.T) {
	e := echo.New()
	news := &fakeNews{}
	h := &NewsHandler{News: news}

	req := httptest.NewRequest(http.MethodGet, "/api/news?n=5", nil)
	rec := httptest.NewRecorder()
	if err := h.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if news.n != 5 || !strings.Contains(rec.Body.String(), "rate limit") {
		t.Fatalf("unexpected response %s (n=%d)", rec.Body.String(), news.n)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/news?n=abc", nil)
	rec = httptest.NewRecorder()
	var httpErr *echo.HTTPError
	if err := h.list(e.NewContext(req, rec)); !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestBudgetEndpoint(t *testing.T) {
	e := echo.New()
	body := `{"income":"4000","expenses":{"Food":"500"},"projection_months":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/budget", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := (&BudgetHandler{}).evaluate(e.NewContext(req, rec)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Monthly Savings: $3500.00") ||
		!strings.Contains(rec.Body.String(), "In 2 months, you could save about $7000.00") {
		t.Fatalf("unexpected report %s", rec.Body.String())
	}
}

func TestRoutesAndHealth(t *testing.T) {
	e := New(Deps{Sessions: inmemory.NewInMemorySessionStore(nil)})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/missing/notices", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "session not found") {
		t.Fatalf("expected JSON 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
